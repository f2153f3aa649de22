package main

/*------------------------------------------------------------------
 *
 * Purpose:	Main program for the networked Morse paddle keyer
 *		daemon: wires paddle input, the iambic engine, sidetone
 *		synthesis, TX keying and (optionally) remote streaming
 *		into a single 1kHz main loop.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer"
	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer/audio"
	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer/hal"
	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer/remote"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "Path to a YAML device configuration file. Defaults baked in if omitted.")
		verbose     = pflag.BoolP("verbose", "v", false, "Enable debug-level logging and a verbose version banner.")
		simAudio    = pflag.Bool("sim-audio", false, "Use the in-memory fake codec instead of portaudio.")
		simGPIO     = pflag.Bool("sim-gpio", false, "Use the in-memory simulated paddle/TX instead of real GPIO.")
		remoteAddr  = pflag.String("remote-addr", "", "TCP address of a remote console to stream key events to. Empty disables remote streaming.")
		advertise   = pflag.Bool("advertise", false, "Advertise this keyer via DNS-SD for remote console discovery.")
		gpioChip    = pflag.String("gpio-chip", "", "gpio-cdev chip name, e.g. gpiochip0.")
		showVersion = pflag.BoolP("version", "V", false, "Print version and exit.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ironkeyerd - networked Morse paddle keyer daemon.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ironkeyerd [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *showVersion {
		fmt.Println(keyer.VersionString(*verbose))
		os.Exit(0)
	}

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	logger.Info(keyer.VersionString(false))

	dc := keyer.DefaultDeviceConfig()
	if *configPath != "" {
		loaded, err := keyer.LoadDeviceConfig(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", "path", *configPath, "err", err)
		}
		dc = loaded
	}
	if *gpioChip != "" {
		// applied directly to the HAL constructors below; DeviceConfig
		// itself has no chip field since chip selection is a deployment
		// concern, not a keying parameter.
		_ = gpioChip
	}

	codec, err := buildCodec(*simAudio, dc, logger)
	if err != nil {
		var initErr *keyer.InitError
		if errors.As(err, &initErr) && !initErr.Fatal {
			logger.Warn("codec init failed, continuing without sidetone", "err", err)
			codec = keyer.NewFakeCodec()
			_ = codec.Initialize(dc.Audio.SampleRateHz, 16, dc.Audio.SidetoneVolumePct)
		} else {
			logger.Fatal("codec init failed", "err", err)
		}
	}

	tone := keyer.NewToneGenerator(dc.Audio.SampleRateHz)
	tone.Configure(dc.Audio.SidetoneFrequencyHz, dc.Audio.SidetoneVolumePct, dc.Audio.FadeInMS, dc.Audio.FadeOutMS)

	pump := keyer.NewAudioPump(codec, tone, logger)

	paddleInput, txKeyer, err := buildHAL(*simGPIO, *gpioChip, dc, logger)
	if err != nil {
		logger.Fatal("hal init failed", "err", err)
	}

	sub := keyer.NewKeyingSubsystem(logger)
	sub.Initialize(dc, tone, txKeyer)

	var streamer *remote.TCPStreamer
	var advertiser *remote.Advertiser
	if *remoteAddr != "" {
		streamer = remote.NewTCPStreamer(*remoteAddr, logger)
		sub.AddRemoteObserver(streamer)
		sub.SetLatencyProvider(streamer.LatencyMS)
	}
	if *advertise {
		adv, err := remote.Advertise("ironkeyer", remoteListenPort(*remoteAddr), logger)
		if err != nil {
			logger.Error("dns-sd advertise failed", "err", err)
		} else {
			advertiser = adv
		}
	}

	if err := paddleInput.Initialize(dc.PaddlePins, sub.EnqueuePaddleEvent); err != nil {
		logger.Fatal("paddle input init failed", "err", err)
	}
	if err := pump.Start(); err != nil {
		var initErr *keyer.InitError
		if errors.As(err, &initErr) && !initErr.Fatal {
			logger.Warn("audio pump start failed, continuing without sidetone", "err", err)
		} else {
			logger.Fatal("audio pump start failed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := keyer.NewSystemClock()
	runMainLoop(ctx, sub, clock, logger)

	logger.Info("shutting down")
	pump.Stop()
	_ = paddleInput.Shutdown()
	_ = txKeyer.Shutdown()
	_ = codec.Shutdown()
	if streamer != nil {
		_ = streamer.Close()
	}
	if advertiser != nil {
		_ = advertiser.Close()
	}
}

// runMainLoop drains queued paddle events and ticks the engine at
// 1kHz until ctx is cancelled, per spec.md §4.3's main-loop contract.
func runMainLoop(ctx context.Context, sub *keyer.KeyingSubsystem, clock *keyer.SystemClock, logger *log.Logger) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sub.DrainPaddleEvents()
			sub.Tick(clock.NowUS())
		}
	}
}

func buildCodec(sim bool, dc keyer.DeviceConfig, logger *log.Logger) (keyer.Codec, error) {
	var codec keyer.Codec
	if sim {
		codec = keyer.NewFakeCodec()
	} else {
		codec = audio.NewPortAudioCodec(-1)
	}
	if err := codec.Initialize(dc.Audio.SampleRateHz, 16, dc.Audio.SidetoneVolumePct); err != nil {
		return nil, err
	}
	return codec, nil
}

func buildHAL(sim bool, chip string, dc keyer.DeviceConfig, logger *log.Logger) (keyer.PaddleInput, keyer.TXKeyer, error) {
	if sim {
		return hal.NewSimPaddleInput(), hal.NewSimTXKeyer(), nil
	}

	var input keyer.PaddleInput
	if dc.PaddlePins.PollMode {
		input = hal.NewPollingPaddleInput(chip, time.Millisecond)
	} else {
		input = hal.NewCdevPaddleInput(chip)
	}

	tx, err := hal.NewGPIOTXKeyer(chip, dc.OutputPins.TRXGPIO, dc.OutputPins.TRXActiveHigh)
	if err != nil {
		return nil, nil, err
	}
	return input, tx, nil
}

// remoteListenPort extracts the :port suffix from addr for advertising;
// ironkeyerd does not itself listen (TCPStreamer dials out), so when
// advertising alongside a configured remote-addr this republishes the
// same port a peer console would listen on.
func remoteListenPort(addr string) int {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			var port int
			fmt.Sscanf(addr[i+1:], "%d", &port)
			return port
		}
	}
	return 0
}
