package speech

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/duetaudio/duet-core/internal/bus"
	"github.com/duetaudio/duet-core/internal/protocol"
)

// BusFrontend serves the generation operation over NATS request/reply as an
// alternative to the HTTP API. Replies always carry base64 audio.
type BusFrontend struct {
	svc        *Service
	bus        *bus.Client
	defaultKey string
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *slog.Logger
}

func NewBusFrontend(parent context.Context, svc *Service, busClient *bus.Client, defaultKey string, log *slog.Logger) *BusFrontend {
	ctx, cancel := context.WithCancel(parent)
	return &BusFrontend{
		svc:        svc,
		bus:        busClient,
		defaultKey: defaultKey,
		ctx:        ctx,
		cancel:     cancel,
		log:        log.With(slog.String("component", "speech-bus")),
	}
}

func (f *BusFrontend) Start() error {
	sub, err := f.bus.Conn().Subscribe(protocol.SubjectGenerate, f.handleRequest)
	if err != nil {
		return err
	}
	f.sub = sub
	return nil
}

func (f *BusFrontend) Close() {
	f.cancel()
	if f.sub != nil {
		_ = f.sub.Drain()
	}
	f.wg.Wait()
}

func (f *BusFrontend) Healthy() bool { return f != nil && f.sub != nil }

func (f *BusFrontend) handleRequest(msg *nats.Msg) {
	var req protocol.GenerateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		f.log.Warn("failed to decode generate request", slog.String("error", err.Error()))
		f.respond(msg, protocol.GenerateReply{Error: &protocol.GenerateError{
			Code: string(KindValidation), Message: "malformed request", Group: -1,
		}})
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(f.ctx, 5*time.Minute)
		defer cancel()

		credential := req.Credential
		if credential == "" {
			credential = f.defaultKey
		}
		res, err := f.svc.Generate(ctx, Request{
			Text:       req.Text,
			Credential: credential,
			Format:     FormatBase64,
			Source:     "bus",
		})
		if err != nil {
			var gerr *Error
			reply := protocol.GenerateReply{Error: &protocol.GenerateError{
				Code: string(KindInternal), Message: err.Error(), Group: -1,
			}}
			if errors.As(err, &gerr) {
				reply.Error.Code = string(gerr.Kind)
				reply.Error.Group = gerr.Group
			}
			f.respond(msg, reply)
			return
		}
		f.respond(msg, protocol.GenerateReply{
			AudioBase64:     res.AudioBase64,
			Groups:          res.Groups,
			Speakers:        res.Speakers,
			DurationSeconds: res.DurationSeconds,
		})
	}()
}

func (f *BusFrontend) respond(msg *nats.Msg, reply protocol.GenerateReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		f.log.Warn("failed to marshal reply", slog.String("error", err.Error()))
		return
	}
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(data); err != nil {
		f.log.Warn("failed to publish reply", slog.String("error", err.Error()))
	}
}
