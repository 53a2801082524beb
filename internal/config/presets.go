package config

var Presets = map[string]map[string]*Config{
	"lj": {
		"liquid": {
			Model: "lj", Blocks: 10, StepsPerBlock: 1000,
			Temperature: 0.7, RCut: 2.5, DrMax: 0.15, Beads: 8, Lambda: 0.1,
		},
		"gas": {
			Model: "lj", Blocks: 10, StepsPerBlock: 1000,
			Temperature: 1.3, RCut: 2.5, DrMax: 0.5, Beads: 4, Lambda: 0.1,
		},
		"quantum": {
			// Strongly quantum regime: many beads, large de Boer length.
			Model: "lj", Blocks: 20, StepsPerBlock: 1000,
			Temperature: 0.5, RCut: 2.5, DrMax: 0.1, Beads: 32, Lambda: 0.3,
		},
	},
	"ideal": {
		"free": {
			Model: "ideal", Blocks: 5, StepsPerBlock: 500,
			Temperature: 1.0, RCut: 2.5, DrMax: 0.3, Beads: 16, Lambda: 0.2,
		},
	},
}

func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	return names
}
