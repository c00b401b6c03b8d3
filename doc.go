// Package certvault is the Composition Root for the certvault application.
//
// It connects the core record logic (Domain Layer) with the filesystem
// adapter (Persistence Layer) using the Hexagonal Architecture pattern.
//
// Records are SSL certificate descriptions whose fields are not hard-coded:
// a settings file (uiSettings.json) declares every field's name, type and,
// for dates, whether it bounds the validity window from below or above.
// Each record lives in its own file named ssl<serial>.json.
//
// Features:
//
//   - **Data-Driven Schema**: Fields come from uiSettings, in JSON or YAML.
//   - **One File Per Record**: Durable atomic writes, readable by hand.
//   - **Search**: Substring match on text, window bounds on dates, all ANDed.
//   - **Git Audit Trail**: Optional commit per change (WithVersioning).
//   - **Reactive**: Outside edits to the directory are picked up via Watch.
//
// Usage:
//
//	store, err := certvault.Open(ctx, "./ssls", "./uiSettings.json",
//		certvault.WithLogger(logger),
//	)
//
//	rec, err := store.Create(ctx, certvault.Input{
//		"issuedTo":  "Cisco",
//		"issuedBy":  "Google",
//		"validFrom": "2016-12-01",
//		"validTo":   "2017-12-01",
//	})
//
//	found, err := store.Search(ctx, certvault.Query{"issuedTo": "cis"})
package certvault
