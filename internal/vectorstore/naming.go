package vectorstore

import "strings"

// legacyIndexName is the index name older configs shipped with. It is
// only honoured for the repository it was created for.
const legacyIndexName = "patchwork-repo"

// NamespaceForRepo returns the namespace holding a repository's vectors
func NamespaceForRepo(repoName string) string {
	return repoName + "-code"
}

// EnrichedNamespace returns the namespace for deep-research enriched chunks
func EnrichedNamespace(namespace string) string {
	return namespace + "-enriched"
}

// ResolveIndexName picks the index for a repository. An empty configured
// name, or the legacy default used for another repository, becomes
// "<repo>-repo" in lower case.
func ResolveIndexName(configured, repoName string) string {
	derived := strings.ToLower(repoName) + "-repo"
	if configured == "" {
		return derived
	}
	if configured == legacyIndexName && strings.ToLower(repoName) != "patchwork" {
		return derived
	}
	return configured
}
