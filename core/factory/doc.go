// Package factory is a small generic registry used to build pluggable modules
// (metrics sinks, text generation providers, record stores) from
// configuration. A module is described by a type name and a raw settings map
// which the registered factory decodes into its own typed struct.
//
//	reg := factory.NewRegistry[generation.Generator]()
//	_ = reg.Register("openai", func(conf map[string]any) (generation.Generator, error) {
//	    var c struct{ Model string `json:"model"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newProvider(c.Model), nil
//	})
//	g, err := reg.Create(factory.ModuleConfig{Type: "openai", Conf: map[string]any{"model": "gpt-4o-mini"}})
package factory
