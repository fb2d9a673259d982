// Package tracker provides an embeddable build timing tracker library that can be used from other Go applications.
//
// # Overview
//
// The tracker follows the merge commits of a repository, collects the build logs each CI vendor
// (Travis CI, AppVeyor, Azure Pipelines) produced for them, extracts per-crate compile timings
// and publishes one gzipped JSON record per commit to an object store. From the published
// records it generates dashboard data: a shared time series document plus one document per commit.
//
// # Basic Usage
//
// Create a tracker programmatically:
//
//	cfg := &tracker.Config{
//		History: tracker.HistoryConfig{
//			Repo:   "/srv/checkouts/rust",
//			Author: "bors",
//		},
//		Storage: tracker.StorageConfig{
//			Bucket:   "rustc-timing",
//			Region:   "us-west-1",
//			CacheDir: "cache",
//		},
//		Travis: tracker.TravisConfig{
//			URL:      "https://api.travis-ci.com",
//			Slug:     "rust-lang/rust",
//			Branch:   "auto",
//			Token:    os.Getenv("TRAVIS_TOKEN"),
//			PageSize: 25,
//		},
//		// AppVeyor and Azure configured the same way
//		Logging: tracker.LoggingConfig{
//			Level:  "info",
//			Format: "json",
//		},
//	}
//
//	t, err := tracker.New(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := t.Ingest(ctx); err != nil {
//		log.Fatal(err)
//	}
//	if err := t.BuildSite(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Serving the Dashboard Data
//
// Serve the generated documents with graceful shutdown:
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := t.Serve(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Using with Existing HTTP Server
//
// Integrate the tracker into an existing HTTP server:
//
//	t, err := tracker.NewWithStore(cfg, myStore)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Mount the tracker under a specific path
//	http.Handle("/timings/", http.StripPrefix("/timings", t.Handler()))
//
//	// Add your own routes
//	http.HandleFunc("/custom", myHandler)
//
//	http.ListenAndServe(":8080", nil)
//
// # File-based Configuration
//
// Load configuration from a YAML file (with ${VAR} expansion):
//
//	t, err := tracker.NewFromFile(ctx, "configs/ci-timings.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := t.Ingest(ctx); err != nil {
//		log.Fatal(err)
//	}
package tracker
