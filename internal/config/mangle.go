package config

// MangleConfig configures the Mangle engine.
type MangleConfig struct {
	// PolicyPath is an optional extra .mg file layered on the embedded schema.
	PolicyPath   string `yaml:"policy_path"`
	FactLimit    int    `yaml:"fact_limit"`
	QueryTimeout string `yaml:"query_timeout"`
	AutoEval     bool   `yaml:"auto_eval"`
}
