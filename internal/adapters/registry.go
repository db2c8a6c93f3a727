package adapters

import "fmt"

// Registry resolves a model name (as stored on a Task's payload) to its
// capability adapter, generalizing AdapterFactory beyond the single
// video-only factory the teacher had: every capability gets its own
// name->adapter table instead of one switch per new model.
type Registry struct {
	text  map[string]TextModel
	image map[string]ImageModel
	tts   map[string]TTSModel
	video map[string]VideoModel
}

// NewRegistry wires the default models, mirroring
// AdapterFactory.GetDefaultAdapter's fallback behavior: an unregistered
// model name is a configuration error surfaced at dispatch time, not
// silently substituted.
func NewRegistry() *Registry {
	gpt4o := NewGPT4oText()
	llama := NewLlamaText()
	flux := NewFluxImage()
	tts := NewOpenAITTS()
	kling := NewKlingVideo()
	veo := NewVeoVideo()

	return &Registry{
		text:  map[string]TextModel{gpt4o.ModelName(): gpt4o, llama.ModelName(): llama},
		image: map[string]ImageModel{flux.ModelName(): flux},
		tts:   map[string]TTSModel{tts.ModelName(): tts},
		video: map[string]VideoModel{kling.ModelName(): kling, veo.ModelName(): veo},
	}
}

func (r *Registry) TextModel(name string) (TextModel, error) {
	m, ok := r.text[name]
	if !ok {
		return nil, fmt.Errorf("unknown text model %q", name)
	}
	return m, nil
}

func (r *Registry) ImageModel(name string) (ImageModel, error) {
	m, ok := r.image[name]
	if !ok {
		return nil, fmt.Errorf("unknown image model %q", name)
	}
	return m, nil
}

func (r *Registry) TTSModel(name string) (TTSModel, error) {
	m, ok := r.tts[name]
	if !ok {
		return nil, fmt.Errorf("unknown tts model %q", name)
	}
	return m, nil
}

func (r *Registry) VideoModel(name string) (VideoModel, error) {
	m, ok := r.video[name]
	if !ok {
		return nil, fmt.Errorf("unknown video model %q", name)
	}
	return m, nil
}

// DefaultTextModel, DefaultImageModel, DefaultTTSModel and
// DefaultVideoModel name the models used when a Task's payload leaves
// Model empty (§9's auto-create resolution: missing model name maps to
// the registry default, never a silent best-guess at dispatch time).
const (
	DefaultTextModel  = "gpt-4o"
	DefaultImageModel = "flux-1.1-pro"
	DefaultTTSModel   = "tts-1"
	DefaultVideoModel = "kling-v2.5-turbo-pro"
)
