package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"redub/internal/logging"
	"redub/internal/services"
)

// sender is the outbound half of a ConnectionManager.
type sender interface {
	Send(Envelope) error
}

// Dispatcher validates, correlates, and sends request envelopes, then waits
// for the router to resolve the matching response. Each request gets a fresh
// correlation id; binary payloads go out as dedicated frames with frame-map
// indices, falling back to inline base64 only below the configured limit.
type Dispatcher struct {
	conn        sender
	breaker     *Breaker
	pending     *pendingTable
	inlineLimit int
	logger      *slog.Logger
	newID       func() string

	countsMu sync.Mutex
	counts   map[Type]int64
}

// NewDispatcher wires a dispatcher to its connection and breaker. The
// returned dispatcher shares its pending table with the Router built from
// it.
func NewDispatcher(conn sender, breaker *Breaker, inlineLimit int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		conn:        conn,
		breaker:     breaker,
		pending:     newPendingTable(),
		inlineLimit: inlineLimit,
		logger:      logger,
		newID:       uuid.NewString,
		counts:      make(map[Type]int64),
	}
}

// Stats returns a snapshot of how many requests were dispatched per type.
func (d *Dispatcher) Stats() map[Type]int64 {
	d.countsMu.Lock()
	defer d.countsMu.Unlock()
	out := make(map[Type]int64, len(d.counts))
	for t, n := range d.counts {
		out[t] = n
	}
	return out
}

// Pending reports how many requests are awaiting responses.
func (d *Dispatcher) Pending() int { return d.pending.size() }

// Submit validates a request, registers it in the pending table, and sends
// it under retry/breaker control. The caller waits on the returned
// PendingRequest for the response.
func (d *Dispatcher) Submit(ctx context.Context, payload Payload, frames ...[]byte) (*PendingRequest, error) {
	meta := payload.EnvelopeMeta()
	if err := validateRequest(payload); err != nil {
		return nil, err
	}
	meta.CorrelationID = d.newID()
	env, err := Seal(payload, frames...)
	if err != nil {
		return nil, err
	}
	req := d.pending.add(meta.CorrelationID, meta.Type)
	sendErr := d.breaker.Execute(ctx, func(context.Context) error {
		return d.conn.Send(env)
	})
	if sendErr != nil {
		d.pending.fail(meta.CorrelationID, sendErr)
		return nil, sendErr
	}
	d.countsMu.Lock()
	d.counts[meta.Type]++
	d.countsMu.Unlock()
	d.logger.Debug("request dispatched",
		logging.String(logging.FieldComponent, "dispatcher"),
		logging.String(logging.FieldCorrelationID, meta.CorrelationID),
		slog.String("type", string(meta.Type)),
		slog.Int("binary_frames", len(frames)))
	return req, nil
}

// Translate sends a translation request and waits for the result.
func (d *Dispatcher) Translate(ctx context.Context, req TranslateRequest) (TranslateResult, error) {
	req.Type = TypeTranslate
	var result TranslateResult
	if err := d.roundTrip(ctx, &req, &result); err != nil {
		return TranslateResult{}, err
	}
	return result, nil
}

// ProcessAudio sends audio through the full dub path. The synthesized audio
// comes back as a binary frame.
func (d *Dispatcher) ProcessAudio(ctx context.Context, req AudioProcessRequest, audio, voiceProfile []byte) (AudioProcessResult, []byte, error) {
	req.Type = TypeAudioProcess
	frames := d.attachAudio(&req.Meta, &req.InlineAudio, audio)
	if len(voiceProfile) > 0 {
		frames = attachProfile(&req.Meta, frames, voiceProfile)
	}
	var result AudioProcessResult
	env, err := d.roundTripEnvelope(ctx, &req, &result, frames)
	if err != nil {
		return AudioProcessResult{}, nil, err
	}
	out, err := resultAudio(env)
	if err != nil {
		return AudioProcessResult{}, nil, err
	}
	return result, out, nil
}

// TranscribeOnly requests a transcript with word timings.
func (d *Dispatcher) TranscribeOnly(ctx context.Context, req TranscribeOnlyRequest, audio []byte) (TranscribeOnlyResult, error) {
	req.Type = TypeTranscribeOnly
	frames := d.attachAudio(&req.Meta, &req.InlineAudio, audio)
	var result TranscribeOnlyResult
	if _, err := d.roundTripEnvelope(ctx, &req, &result, frames); err != nil {
		return TranscribeOnlyResult{}, err
	}
	return result, nil
}

// SynthesizeVoice requests speech synthesis; a non-empty voiceProfile rides
// along as a binary frame and overrides the named voice.
func (d *Dispatcher) SynthesizeVoice(ctx context.Context, req VoiceAPIRequest, voiceProfile []byte) (VoiceAPIResult, []byte, error) {
	req.Type = TypeVoiceAPI
	req.Operation = VoiceOpSynthesize
	var frames [][]byte
	if len(voiceProfile) > 0 {
		frames = attachProfile(&req.Meta, frames, voiceProfile)
	}
	var result VoiceAPIResult
	env, err := d.roundTripEnvelope(ctx, &req, &result, frames)
	if err != nil {
		return VoiceAPIResult{}, nil, err
	}
	out, err := resultAudio(env)
	if err != nil {
		return VoiceAPIResult{}, nil, err
	}
	return result, out, nil
}

// AnalyzeVoice extracts vocal metrics from an audio clip.
func (d *Dispatcher) AnalyzeVoice(ctx context.Context, req VoiceAPIRequest, audio []byte) (VoiceAPIResult, error) {
	req.Type = TypeVoiceAPI
	req.Operation = VoiceOpAnalyze
	frames := d.attachAudio(&req.Meta, &req.InlineAudio, audio)
	var result VoiceAPIResult
	if _, err := d.roundTripEnvelope(ctx, &req, &result, frames); err != nil {
		return VoiceAPIResult{}, err
	}
	return result, nil
}

// VerifyVoice checks an audio clip against the speaker's stored voice
// profile, or against reference audio when one is supplied.
func (d *Dispatcher) VerifyVoice(ctx context.Context, req VoiceAPIRequest, audio, reference []byte) (VoiceAPIResult, error) {
	req.Type = TypeVoiceAPI
	req.Operation = VoiceOpVerify
	frames := d.attachAudio(&req.Meta, &req.InlineAudio, audio)
	if len(reference) > 0 {
		frames = attachProfile(&req.Meta, frames, reference)
	}
	var result VoiceAPIResult
	if _, err := d.roundTripEnvelope(ctx, &req, &result, frames); err != nil {
		return VoiceAPIResult{}, err
	}
	return result, nil
}

// CompareVoices scores the similarity of two clips. The reference clip
// rides in the voice-profile frame slot.
func (d *Dispatcher) CompareVoices(ctx context.Context, req VoiceAPIRequest, audio, reference []byte) (VoiceAPIResult, error) {
	req.Type = TypeVoiceAPI
	req.Operation = VoiceOpCompare
	frames := d.attachAudio(&req.Meta, &req.InlineAudio, audio)
	frames = attachProfile(&req.Meta, frames, reference)
	var result VoiceAPIResult
	if _, err := d.roundTripEnvelope(ctx, &req, &result, frames); err != nil {
		return VoiceAPIResult{}, err
	}
	return result, nil
}

// BuildVoiceProfile derives a reusable voice profile from reference audio.
func (d *Dispatcher) BuildVoiceProfile(ctx context.Context, req VoiceProfileRequest, referenceAudio []byte) (VoiceProfileResult, []byte, error) {
	req.Type = TypeVoiceProfile
	frames := d.attachAudio(&req.Meta, &req.InlineAudio, referenceAudio)
	var result VoiceProfileResult
	env, err := d.roundTripEnvelope(ctx, &req, &result, frames)
	if err != nil {
		return VoiceProfileResult{}, nil, err
	}
	profile, err := env.VoiceProfileFrame()
	if err != nil {
		return VoiceProfileResult{}, nil, err
	}
	if profile == nil && len(env.Frames) > 0 {
		profile = env.Frames[0]
	}
	return result, profile, nil
}

// Ping probes the worker and waits for the pong.
func (d *Dispatcher) Ping(ctx context.Context) (PongResult, error) {
	req := PingRequest{Meta: Meta{Type: TypePing}}
	var result PongResult
	if err := d.roundTrip(ctx, &req, &result); err != nil {
		return PongResult{}, err
	}
	return result, nil
}

func (d *Dispatcher) roundTrip(ctx context.Context, req Payload, result any) error {
	_, err := d.roundTripEnvelope(ctx, req, result, nil)
	return err
}

func (d *Dispatcher) roundTripEnvelope(ctx context.Context, req Payload, result any, frames [][]byte) (Envelope, error) {
	pending, err := d.Submit(ctx, req, frames...)
	if err != nil {
		return Envelope{}, err
	}
	env, err := pending.Wait(ctx)
	if err != nil {
		return Envelope{}, err
	}
	if err := env.Decode(result); err != nil {
		return Envelope{}, err
	}
	if msg := resultError(env); msg != "" {
		return Envelope{}, services.Wrap(services.ErrTransient, "dispatcher", "response", msg, nil)
	}
	return env, nil
}

// attachAudio places audio either in a binary frame (updating the frame map)
// or inline as base64 when small enough.
func (d *Dispatcher) attachAudio(meta *Meta, inline *string, audio []byte) [][]byte {
	if len(audio) == 0 {
		return nil
	}
	if d.inlineLimit > 0 && len(audio) <= d.inlineLimit {
		*inline = InlineAudio(audio)
		return nil
	}
	if meta.FrameMap == nil {
		meta.FrameMap = &FrameMap{}
	}
	meta.FrameMap.Audio = 1
	meta.FrameMap.AudioSize = len(audio)
	meta.FrameMap.AudioMimeType = "audio/wav"
	return [][]byte{audio}
}

func attachProfile(meta *Meta, frames [][]byte, profile []byte) [][]byte {
	if meta.FrameMap == nil {
		meta.FrameMap = &FrameMap{}
	}
	frames = append(frames, profile)
	meta.FrameMap.VoiceProfile = len(frames)
	meta.FrameMap.VoiceProfileSize = len(profile)
	return frames
}

func resultAudio(env Envelope) ([]byte, error) {
	meta, err := env.Meta()
	if err != nil {
		return nil, err
	}
	if meta.FrameMap != nil && meta.FrameMap.Audio > 0 {
		return env.AudioFrame()
	}
	if len(env.Frames) > 0 {
		return env.Frames[0], nil
	}
	return nil, nil
}

// resultError surfaces a worker-reported failure riding in the response
// header.
func resultError(env Envelope) string {
	var probe struct {
		Error string `json:"error"`
	}
	if err := env.Decode(&probe); err != nil {
		return ""
	}
	return probe.Error
}

func validateRequest(payload Payload) error {
	invalid := func(msg string) error {
		return services.Wrap(services.ErrInvalidRequest, "dispatcher", "validate", msg, nil)
	}
	switch req := payload.(type) {
	case *TranslateRequest:
		if req.Text == "" {
			return invalid("translate request missing text")
		}
		if len(req.TargetLanguages) == 0 {
			return invalid("translate request missing target languages")
		}
	case *AudioProcessRequest:
		if len(req.TargetLanguages) == 0 {
			return invalid("audio process request missing target languages")
		}
		if !carriesAudio(req.Meta, req.InlineAudio) {
			return invalid("audio process request missing audio")
		}
	case *TranscribeOnlyRequest:
		if !carriesAudio(req.Meta, req.InlineAudio) {
			return invalid("transcribe request missing audio")
		}
	case *VoiceAPIRequest:
		switch req.Operation {
		case "", VoiceOpSynthesize:
			if req.Text == "" {
				return invalid("voice request missing text")
			}
			if req.Language == "" {
				return invalid("voice request missing language")
			}
		case VoiceOpAnalyze:
			if !carriesAudio(req.Meta, req.InlineAudio) {
				return invalid("voice analyze request missing audio")
			}
		case VoiceOpCompare:
			if !carriesAudio(req.Meta, req.InlineAudio) {
				return invalid("voice compare request missing audio")
			}
			if req.FrameMap == nil || req.FrameMap.VoiceProfile == 0 {
				return invalid("voice compare request missing reference clip")
			}
		case VoiceOpVerify:
			if !carriesAudio(req.Meta, req.InlineAudio) {
				return invalid("voice verify request missing audio")
			}
			if req.SpeakerID == "" && (req.FrameMap == nil || req.FrameMap.VoiceProfile == 0) {
				return invalid("voice verify request missing speaker id")
			}
		default:
			return invalid("unknown voice operation " + req.Operation)
		}
	case *VoiceProfileRequest:
		if req.SpeakerID == "" {
			return invalid("voice profile request missing speaker id")
		}
		if !carriesAudio(req.Meta, req.InlineAudio) {
			return invalid("voice profile request missing reference audio")
		}
	case *PingRequest:
		// No required fields.
	default:
		return invalid("unknown request type")
	}
	return nil
}

// carriesAudio reports whether the request resolved any audio bytes, either
// inline or as a mapped binary frame.
func carriesAudio(meta Meta, inline string) bool {
	return inline != "" || (meta.FrameMap != nil && meta.FrameMap.Audio > 0)
}
