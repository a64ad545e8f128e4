// Package manifest loads multi-repository ingestion manifests.
//
// Manifests are YAML or JSON:
//
//	repositories:
//	  - url: https://github.com/org/service
//	    search_query: "grpc gateway"
//	  - url: git@github.com:org/tools.git
//	    no_firecrawl: true
//	options:
//	  continue_on_error: true
//	  incremental: true
//
// Every repository needs a URL and URLs must be unique, ignoring case
// and a trailing .git.
package manifest
