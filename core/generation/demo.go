package generation

import "context"

// DemoText is returned by the demo provider.
const DemoText = "Grid Advisory: Solar generation is tracking within expected bounds. " +
	"Backup dispatch has been pre-positioned per CERC merit order requirements. " +
	"Spinning reserve maintained above minimum threshold. " +
	"[Add GROQ_API_KEY or OPENAI_API_KEY to .env for full AI-generated advisories]"

// Demo answers every prompt with a fixed advisory. It is used when no
// provider has a usable key.
type Demo struct{}

func (Demo) Generate(context.Context, string, string) (string, error) { return DemoText, nil }
func (Demo) Name() string                                           { return ProviderDemo }

func init() {
	_ = Register(ProviderDemo, func(map[string]any) (Generator, error) { return Demo{}, nil })
}
