package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 15
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Chunking.Separator == "" {
		cfg.Chunking.Separator = "\n\n"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.HybridAlpha == nil {
		a := 0.7
		cfg.Retrieval.HybridAlpha = &a
	}
	if cfg.Retrieval.Rerank == nil {
		r := true
		cfg.Retrieval.Rerank = &r
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
