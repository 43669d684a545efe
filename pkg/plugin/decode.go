package plugin

import "github.com/mitchellh/mapstructure"

// Decode maps a plugin's options (already loaded from YAML by
// internal/config) onto a plugin-defined config struct via mapstructure
// tags, the Go-native stand-in for pipeline-design.md §4.4's getOptions().
func Decode(options map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}
