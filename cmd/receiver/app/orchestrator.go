package app

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/radio-receiver/internal/audio"
	"github.com/roman-kulish/radio-receiver/internal/bridge"
	"github.com/roman-kulish/radio-receiver/internal/decoder"
	"github.com/roman-kulish/radio-receiver/internal/receiver"
	"github.com/roman-kulish/radio-receiver/internal/scanner"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/rtl"
	"github.com/roman-kulish/radio-receiver/internal/storage"
)

// WithChannelSink adds a sink for channels found by the scanner
func WithChannelSink(sink scanner.ChannelSink) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sink)
	}
}

// WithDrain makes the orchestrator drain the bridge event queue and log its
// events. Leave it off when another consumer, such as the HTTP API, drains
// them. Frames are always drained; only the latest one is saved.
func WithDrain(drain bool) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.drain = drain
	}
}

// Orchestrator runs either a single reception or a frequency sweep, persists
// the run and saves the frames it produces.
type Orchestrator struct {
	config *Config
	store  storage.Store
	bridge *bridge.Bridge
	gate   *audio.GateConfig
	sinks  []scanner.ChannelSink

	receiver *receiver.Receiver
	scanner  *scanner.Scanner
	scanID   string

	drain   bool
	started time.Time
	last    *decoder.Frame
	saved   int64

	logger *slog.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(config *Config, store storage.Store, b *bridge.Bridge, gate *audio.GateConfig, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		config: config,
		store:  store,
		bridge: b,
		gate:   gate,
		drain:  true,
		logger: logger,
	}

	for _, option := range options {
		option(&o)
	}

	if config.Scanner.Enabled {
		o.scanID = uuid.NewString()
		o.scanner = o.createScanner()
	} else {
		o.receiver = o.createReceiver()
	}

	return &o
}

// Receiver returns the receiver, nil when sweeping
func (o *Orchestrator) Receiver() *receiver.Receiver {
	return o.receiver
}

// Scanner returns the scanner, nil when receiving
func (o *Orchestrator) Scanner() *scanner.Scanner {
	return o.scanner
}

func (o *Orchestrator) player(mode sdr.Mode) *audio.Processor {
	return audio.NewProcessor(o.gate,
		audio.WithLogger(o.logger),
		audio.WithSinkFactory(audio.NewPlayerFactory(o.config.Gate.Player)),
		audio.WithRate(o.playbackRate(mode)),
	)
}

// playbackRate is the rate rtl_fm writes in mode, honouring a device override
func (o *Orchestrator) playbackRate(mode sdr.Mode) int {
	dev := o.config.Device
	dev.Mode = mode
	return dev.OutputRateHz()
}

func (o *Orchestrator) createReceiver() *receiver.Receiver {
	options := []func(*receiver.Receiver){
		receiver.WithLogger(o.logger),
		receiver.WithRecorder(o.store),
	}
	if o.config.Receive.Mode.IsAudio() {
		options = append(options, receiver.WithAudio(o.player(o.config.Receive.Mode)))
	}

	return receiver.New(receiver.NewRTLHandlerFactory(o.config.Device), o.bridge, options...)
}

func (o *Orchestrator) createScanner() *scanner.Scanner {
	options := []func(*scanner.Scanner){
		scanner.WithLogger(o.logger),
		scanner.WithStatus(o.bridge.Status),
		scanner.WithChannelSink(&channelRecorder{store: o.store, sessionID: o.scanID}),
	}
	for _, sink := range o.sinks {
		options = append(options, scanner.WithChannelSink(sink))
	}
	if o.config.Scanner.Monitor {
		options = append(options, scanner.WithMonitor(o.player(sdr.ModeScanAudio)))
	}

	return scanner.New(scanner.NewRTLHandlerFactory(o.config.Device), options...)
}

// Run runs until the reception completes or ctx is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.scanner != nil {
		return o.runScan(ctx)
	}
	return o.runReception(ctx)
}

func (o *Orchestrator) runReception(ctx context.Context) error {
	cfg := receiver.Config{
		Mode:      o.config.Receive.Mode,
		Frequency: o.config.Receive.Frequency,
		Duration:  o.config.Receive.Duration.Duration(),
		Decoder:   o.config.DecoderOptions(),
	}

	session, err := o.receiver.Start(ctx, cfg)
	if err != nil {
		return fmt.Errorf("starting reception: %w", err)
	}

	o.started = session.StartedAt
	o.logger.Info("reception started",
		slog.String("session", session.ID),
		slog.String("mode", cfg.Mode.String()),
		slog.Float64("frequency", cfg.Frequency),
	)

	o.consume(ctx, o.receiver.Done())

	err = o.receiver.Stop()
	o.poll()

	o.logger.Info("reception finished",
		slog.String("session", session.ID),
		slog.String("frames_saved", humanize.Comma(o.saved)),
	)

	return err
}

func (o *Orchestrator) runScan(ctx context.Context) error {
	cfg := o.config.Scanner.Config

	sess := storage.Session{
		ID:        o.scanID,
		Mode:      sdr.ModeScanAudio.String(),
		Device:    rtl.Device,
		Frequency: cfg.Start,
		Duration:  cfg.Dwell.Duration(),
		StartTime: time.Now(),
	}
	if err := o.store.CreateSession(ctx, &sess, cfg); err != nil {
		return fmt.Errorf("creating scan session: %w", err)
	}

	if err := o.scanner.Start(ctx, cfg); err != nil {
		return fmt.Errorf("starting scan: %w", err)
	}

	o.consume(ctx, nil)

	err := o.scanner.Stop()
	o.poll()

	var best float64
	active := o.scanner.Active()
	for _, ch := range active {
		best = max(best, ch.Quality)
	}

	summary := storage.SessionSummary{EndTime: time.Now(), Quality: best}
	if endErr := o.store.EndSession(context.Background(), o.scanID, summary); endErr != nil {
		err = errors.Join(err, fmt.Errorf("ending scan session: %w", endErr))
	}

	o.logger.Info("scan finished",
		slog.String("session", o.scanID),
		slog.Int("active", len(active)),
	)

	return err
}

// consume polls the bridge until done is closed or ctx is cancelled
func (o *Orchestrator) consume(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(o.config.Settings.PollEvery.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.poll()

		case <-done:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) poll() {
	if o.drain {
		for _, e := range o.bridge.DrainEvents() {
			o.logEvent(e)
		}
	}
	o.bridge.DrainFrames()

	f := o.bridge.LatestFrame()
	if f == nil || f == o.last {
		return
	}
	o.last = f

	if o.config.Output.Directory == "" {
		return
	}
	if err := o.saveFrame(f); err != nil {
		o.logger.Error(fmt.Sprintf("saving frame: %s", err))
	}
}

// logEvent logs progress events; status messages are already logged by the
// bridge.
func (o *Orchestrator) logEvent(e bridge.Event) {
	if e.Kind == bridge.KindStatus {
		return
	}
	o.logger.Debug(e.Kind.String(), slog.Float64("percent", e.Value))
}

// saveFrame writes f over the image of its session. The file is replaced
// atomically so readers never see a partial image.
func (o *Orchestrator) saveFrame(f *decoder.Frame) (err error) {
	name := filepath.Join(o.config.Output.Directory, frameFileName(f.Mode, o.started, o.config.Output.Format))

	out, err := os.CreateTemp(o.config.Output.Directory, ".frame-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()

	switch o.config.Output.Format {
	case ImageJPEG:
		err = jpeg.Encode(out, f.Image, &jpeg.Options{
			Quality: 98,
		})
	default:
		err = png.Encode(out, f.Image)
	}
	if err = errors.Join(err, out.Close()); err != nil {
		return err
	}

	if err = os.Rename(out.Name(), name); err != nil {
		return err
	}
	o.saved++

	if stat, statErr := os.Stat(name); statErr == nil {
		o.logger.Debug("frame saved",
			slog.String("path", name),
			slog.String("size", humanize.Bytes(uint64(stat.Size()))),
			slog.Float64("quality", f.Quality),
		)
	}

	return nil
}

// frameFileName names the image of a reception after its mode and start time
func frameFileName(mode sdr.Mode, started time.Time, format ImageFormat) string {
	return fmt.Sprintf("%s_image_%s.%s", mode, started.UTC().Format("20060102_150405"), format)
}

// channelRecorder stores the scanner results of one scan session
type channelRecorder struct {
	store     storage.Store
	sessionID string
}

var _ scanner.ResultRecorder = (*channelRecorder)(nil)

func (r *channelRecorder) ActiveChannel(ctx context.Context, ch scanner.Channel) error {
	return r.store.StoreActiveChannel(ctx, r.sessionID, toReading(ch))
}

func (r *channelRecorder) ScanResult(ctx context.Context, ch scanner.Channel) error {
	return r.store.StoreScanResult(ctx, r.sessionID, toReading(ch))
}

func toReading(ch scanner.Channel) storage.ChannelReading {
	return storage.ChannelReading{
		Frequency: ch.Frequency,
		Quality:   ch.Quality,
		Timestamp: ch.Timestamp.UTC(),
	}
}
