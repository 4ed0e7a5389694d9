// Package moviedex is an in-process Go client for movie search on Meilisearch.
//
// It runs the same search, upsert and caching pipeline as the moviedex HTTP
// service without the HTTP hop:
//
//	client, _ := moviedex.New(ctx,
//	    moviedex.WithMeilisearch("http://localhost:7700", "masterKey"),
//	    moviedex.WithRedisCache("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	_, _ = client.Seed(ctx)
//	movies, _ := client.Search(ctx, "Drama")
package moviedex
