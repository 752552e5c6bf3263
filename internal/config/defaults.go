package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/vecshard/data/db/entries.db"
	}
	if cfg.Storage.Qdrant.Host == "" {
		cfg.Storage.Qdrant.Host = "localhost"
	}
	if cfg.Storage.Qdrant.Port == 0 {
		cfg.Storage.Qdrant.Port = 6334
	}
	if cfg.Storage.Qdrant.Collection == "" {
		cfg.Storage.Qdrant.Collection = "vecshard_entries"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Storage.Qdrant.VectorSize == 0 {
		cfg.Storage.Qdrant.VectorSize = cfg.Embedding.Dimensions
	}
	if cfg.Store.ShardCount == 0 {
		cfg.Store.ShardCount = 16
	}
	if cfg.Store.LoadConcurrency == 0 {
		cfg.Store.LoadConcurrency = 4
	}
	if cfg.Store.DefaultSearchLimit == 0 {
		cfg.Store.DefaultSearchLimit = 10
	}
	if cfg.Store.MaxSearchLimit == 0 {
		cfg.Store.MaxSearchLimit = 100
	}
}
