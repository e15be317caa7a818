package config

import "time"

// Default 返回生产基线配置：mix + smaller_chunks_vector 双策略，
// stuff 链，15000 字节上下文预算，按源排序开启。
func Default() PipelineConfig {
	return PipelineConfig{
		Collection: "documents",
		Retrievers: []RetrieverConfig{
			{
				Type: RetrieverMix,
				Splitter: SplitterConfig{
					Type:         SplitterRecursiveCharacter,
					ChunkSize:    1000,
					ChunkOverlap: 100,
				},
				Retrieval: RetrievalParams{
					TopK:          10,
					Timeout:       10 * time.Second,
					VectorWeight:  0.5,
					KeywordWeight: 0.5,
				},
			},
			{
				Type: RetrieverSmallerChunksVector,
				Splitter: SplitterConfig{
					Type:         SplitterRecursiveCharacter,
					ChunkSize:    1000,
					ChunkOverlap: 100,
				},
				ChildSplitter: &SplitterConfig{
					Type:         SplitterRecursiveCharacter,
					ChunkSize:    250,
					ChunkOverlap: 25,
				},
				Retrieval: RetrievalParams{
					TopK:    10,
					Timeout: 10 * time.Second,
				},
			},
		},
		Generate: GenerateConfig{
			ChainType:  ChainStuff,
			MaxContent: 15000,
		},
		PostRetrieval: PostRetrievalConfig{
			SortBySourceAndIndex: true,
		},
		FailurePolicy: DegradeGracefully,
		Cache: CacheConfig{
			Enabled: false,
			TTL:     10 * time.Minute,
		},
	}
}
