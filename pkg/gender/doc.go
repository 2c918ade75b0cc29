// Package gender provides a first-name gender heuristic used to derive
// French salutations.
//
// The Detector interface is the injection point: the dispatch pipeline and
// message encoder take a Detector at construction time, so the heuristic can
// be swapped for a smarter backend without touching the pipeline.
//
// The built-in heuristic resolves names against an embedded dataset of common
// given names, falling back to suffix rules for names outside the dataset.
// Lookups are accent- and case-insensitive ("José" and "jose" resolve the
// same way).
//
// Usage:
//
//	detector, err := gender.NewHeuristicDetector()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	switch detector.Guess("Amélie") {
//	case gender.Female:
//		// "Madame"
//	case gender.Male:
//		// "Monsieur"
//	default:
//		// "Madame, Monsieur"
//	}
package gender
