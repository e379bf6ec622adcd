package app

import (
	"context"
	"log/slog"
	"net"

	"github.com/teslashibe/go-assistant/pkg/audio"
	"github.com/teslashibe/go-assistant/pkg/camera"
	"github.com/teslashibe/go-assistant/pkg/export"
	"github.com/teslashibe/go-assistant/pkg/inference"
	"github.com/teslashibe/go-assistant/pkg/intent"
	"github.com/teslashibe/go-assistant/pkg/notify"
	"github.com/teslashibe/go-assistant/pkg/session"
	"github.com/teslashibe/go-assistant/pkg/stt"
	"github.com/teslashibe/go-assistant/pkg/tools"
	"github.com/teslashibe/go-assistant/pkg/tts"
	"github.com/teslashibe/go-assistant/pkg/turn"
	"github.com/teslashibe/go-assistant/pkg/web"
)

const openAIBaseURL = "https://api.openai.com/v1"

func (a *App) component(name string) *slog.Logger {
	return a.logger.With("component", name)
}

// initModels builds the response, vision and speech providers.
func (a *App) initModels(ctx context.Context) error {
	cfg := a.cfg
	retries, delay := cfg.Workflow.MaxRetries, cfg.Workflow.RetryDelay

	switch {
	case a.inject.llm != nil:
		a.llm = a.inject.llm
	case cfg.LLM.Provider == "openai":
		c, err := inference.NewClient(
			inference.WithBaseURL(openAIBaseURL),
			inference.WithAPIKey(cfg.LLM.OpenAIKey),
			inference.WithModel(cfg.LLM.Model),
			inference.WithRetry(retries, delay),
			inference.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		a.llm = c
		a.closers = append(a.closers, c)
	default:
		g, err := inference.NewGemini(ctx,
			inference.WithAPIKey(cfg.LLM.APIKey),
			inference.WithModel(cfg.LLM.Model),
			inference.WithRetry(retries, delay),
			inference.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		a.llm = g
		a.closers = append(a.closers, g)
	}

	a.vision = a.llm
	if a.inject.llm == nil && cfg.STT.APIKey != "" {
		c, err := inference.NewClient(
			inference.WithBaseURL(cfg.Vision.BaseURL),
			inference.WithAPIKey(cfg.STT.APIKey),
			inference.WithVisionModel(cfg.Vision.Model),
			inference.WithRetry(retries, delay),
			inference.WithLogger(a.logger),
		)
		if err != nil {
			a.logger.Warn("vision model unavailable, using the response model", "error", err)
		} else {
			a.vision = c
			a.closers = append(a.closers, c)
		}
	}

	if a.inject.primary != nil {
		a.primary, a.secondary = a.inject.primary, a.inject.secondary
		return nil
	}

	backup := tts.NewGTranslate(tts.WithLanguage(cfg.TTS.Language), tts.WithLogger(a.logger))
	a.closers = append(a.closers, backup)

	primary, err := a.primaryVoice()
	if err != nil {
		a.logger.Warn("primary voice unavailable, using the backup voice only", "provider", cfg.TTS.Primary, "error", err)
		a.primary = backup
		return nil
	}
	a.closers = append(a.closers, primary)
	a.primary, a.secondary = primary, backup
	return nil
}

func (a *App) primaryVoice() (tts.Provider, error) {
	cfg := a.cfg.TTS
	retry := tts.WithRetry(a.cfg.Workflow.MaxRetries, a.cfg.Workflow.RetryDelay)

	if cfg.Primary == "openai" {
		return tts.NewOpenAI(tts.WithAPIKey(cfg.OpenAIKey), retry, tts.WithLogger(a.logger))
	}
	return tts.NewElevenLabs(
		tts.WithAPIKey(cfg.APIKey),
		tts.WithVoice(cfg.VoiceID),
		tts.WithModel(cfg.Model),
		tts.WithOutputFormat(tts.Encoding(cfg.OutputFormat)),
		tts.WithLanguage(cfg.Language),
		retry,
		tts.WithLogger(a.logger),
	)
}

// initCamera opens the webcam. Without one the vision tool reports the
// missing camera and the preview stays off.
func (a *App) initCamera() {
	c := a.cfg.Camera
	src := a.inject.camera
	if src == nil {
		if !c.Enabled {
			return
		}
		cam, err := camera.OpenWebcam(camera.Config{
			Device:  c.Device,
			Width:   c.Width,
			Height:  c.Height,
			FPS:     c.FPS,
			Quality: camera.DefaultConfig().Quality,
		})
		if err != nil {
			a.logger.Warn("camera unavailable", "error", err)
			return
		}
		src = cam
	}

	cfg := camera.DefaultConfig()
	cfg.Device, cfg.Width, cfg.Height, cfg.FPS = c.Device, c.Width, c.Height, c.FPS
	a.camera = camera.NewManager(src, cfg, a.component("camera"))
	a.preview = camera.NewPreview(a.camera, func(frame []byte) {
		if a.server != nil {
			a.server.PublishFrame(frame)
		}
	})
	a.closers = append(a.closers, a.camera)
}

func (a *App) initTools() error {
	d := tools.Deps{
		Vision:         a.vision,
		VisionModel:    a.cfg.Vision.Model,
		Notifier:       a.notifier,
		Reminders:      a.reminders,
		OpenWeatherKey: a.cfg.Tools.OpenWeatherKey,
		FilesRoot:      a.cfg.Tools.FilesRoot,
		Logger:         a.component("tools"),
	}
	if a.camera != nil {
		d.Camera = a.camera
	}
	if s, ok := a.llm.(inference.Searcher); ok && a.cfg.Tools.GroundedSearch {
		d.Searcher = s
	}

	r, err := tools.NewDefault(d)
	if err != nil {
		return err
	}
	a.registry = r
	return nil
}

// responder lets the model call the registry's tools on its own while it
// composes a reply.
func (a *App) responder() *inference.Responder {
	llm := a.cfg.LLM
	r := inference.NewResponder(a.llm, llm.SystemPrompt, llm.Temperature, a.logger)
	if a.registry == nil || llm.ToolRounds == 0 {
		return r
	}
	return r.WithTools(a.registry, llm.ToolRounds)
}

func (a *App) initPipeline() error {
	cfg := a.cfg

	recorder := a.inject.recorder
	if recorder == nil {
		lc := audio.DefaultListenConfig()
		lc.SampleRate = cfg.Audio.SampleRate
		lc.ListenTimeout = cfg.Audio.ListenTimeout
		lc.PhraseTimeLimit = cfg.Audio.PhraseTimeLimit
		mic, err := audio.NewPortAudio(lc, a.component("audio"))
		if err != nil {
			return err
		}
		recorder = mic
		a.closers = append(a.closers, mic)
	}

	transcriber := a.inject.transcriber
	if transcriber == nil {
		w, err := stt.NewWhisper(
			stt.WithBaseURL(cfg.STT.BaseURL),
			stt.WithAPIKey(cfg.STT.APIKey),
			stt.WithModel(cfg.STT.Model),
			stt.WithLanguage(cfg.STT.Language),
			stt.WithRetry(cfg.Workflow.MaxRetries, cfg.Workflow.RetryDelay),
			stt.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		transcriber = w
	}

	var player tts.Player
	switch {
	case a.inject.player != nil:
		player = a.inject.player
	case !a.inject.noPlayer:
		player = audio.NewPlayer(cfg.Audio.Player)
	}

	deps := turn.Deps{
		Recorder:    recorder,
		Transcriber: transcriber,
		Classifier:  intent.Default(),
		Tools:       a.registry,
		Responder:   a.responder(),
		Primary:     tts.NewSpeaker(a.primary, player, cfg.Audio.OutputFile, a.logger),
	}
	if a.secondary != nil {
		deps.Secondary = tts.NewSpeaker(a.secondary, player, cfg.Audio.OutputFile, a.logger)
	}

	p, err := turn.New(deps,
		turn.WithTimeouts(turn.Timeouts{
			Record:     turn.RecordTimeout(cfg.Audio.ListenTimeout, cfg.Audio.PhraseTimeLimit),
			Processing: cfg.Workflow.ProcessingTimeout,
		}),
		turn.WithExitKeywords(cfg.Workflow.ExitKeywords...),
		turn.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.pipeline = p
	return nil
}

func (a *App) initSession() {
	cfg := a.cfg
	a.driver = session.New(a.pipeline,
		session.Config{
			AudioDir:             cfg.Audio.Dir,
			TurnPause:            cfg.Workflow.TurnPause,
			RetryBackoff:         cfg.Workflow.RetryDelay,
			MaxConsecutiveFaults: cfg.Workflow.MaxRetries,
			ToolsEnabled:         cfg.Workflow.ToolsEnabled,
			KeepRecordings:       cfg.Audio.KeepRecordings,
		},
		session.WithTools(a.registry),
		session.WithExporter(a.exportSink()),
		session.WithLogger(a.logger),
		session.WithOnEnd(func() {
			if err := notify.SessionEnded(a.notifier); err != nil {
				a.logger.Debug("notification failed", "error", err)
			}
		}),
		session.WithOnUpdate(func(entries []turn.Entry) {
			if a.server != nil {
				a.server.PublishTranscript(entries)
			}
		}),
	)
}

func (a *App) exportSink() export.Sink {
	sinks := export.MultiSink{export.NewFileSink(a.cfg.Export.Dir)}

	gd := a.cfg.Export.GoogleDocs
	if !gd.Enabled {
		return sinks
	}
	docs, err := export.NewGoogleDocs(export.GoogleDocsConfig{
		ClientID:     gd.ClientID,
		ClientSecret: gd.ClientSecret,
		RedirectURL:  "http://localhost:" + portOf(a.cfg.UI.Addr()) + "/auth/google/callback",
		TokenPath:    gd.TokenPath,
	})
	if err != nil {
		a.logger.Warn("google docs export disabled", "error", err)
		return sinks
	}
	a.google = docs
	return append(sinks, docs)
}

func (a *App) initWeb() error {
	deps := web.Deps{
		Session: a.driver,
		Tools:   a.registry,
		Metrics: a.pipeline.Metrics(),
	}
	if a.camera != nil {
		deps.Camera = a.camera
		deps.Preview = a.preview
	}
	if a.google != nil {
		deps.Google = a.google
	}

	s, err := web.New(web.Config{Addr: a.cfg.UI.Addr(), StaticDir: a.cfg.UI.StaticDir}, deps, web.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.server = s
	return nil
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "7860"
	}
	return port
}
