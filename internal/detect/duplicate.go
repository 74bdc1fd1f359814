package detect

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/terroirdata/coopaudit/internal/ingest"
	"github.com/terroirdata/coopaudit/internal/model"
)

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeIdentity folds the parts into one matching key: diacritics
// removed, case folded, runs of whitespace collapsed. "N'Guessan  Kouamé"
// and "n'guessan kouame" produce the same key.
func NormalizeIdentity(parts ...string) string {
	folded := make([]string, len(parts))
	for i, part := range parts {
		s, _, err := transform.String(stripMarks, part)
		if err != nil {
			s = part
		}
		s = strings.ToLower(s)
		folded[i] = strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(folded, "|")
}

// DuplicateProducers groups producer rows whose normalized code+name
// identity collides. Every group of two or more rows is reported with
// its members verbatim, in input order.
func DuplicateProducers(rows []map[string]any) []model.DuplicateGroup {
	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = NormalizeIdentity(
			ingest.PropString(row["code_producteur"]),
			ingest.PropString(row["nom_producteur"]),
		)
	}
	return groupRows(keys, rows)
}

// DuplicateParcels groups parcels sharing both an exact geometry
// fingerprint and an owning producer. The same geometry under two
// different producers is left for the overlap detector. rows must be
// parallel to parcels (the clean snapshot's property maps).
func DuplicateParcels(parcels []model.Parcel, rows []map[string]any) []model.DuplicateGroup {
	var keys []string
	var members []map[string]any
	for i, p := range parcels {
		if p.Fingerprint == "" {
			continue
		}
		keys = append(keys, parcelKey(p))
		members = append(members, rows[i])
	}
	return groupRows(keys, members)
}

// DuplicatePairs returns the unordered parcel index pairs that
// DuplicateParcels classifies as duplicates, for the overlap detector
// to exclude. Each pair is {i, j} with i < j.
func DuplicatePairs(parcels []model.Parcel) map[[2]int]struct{} {
	byKey := make(map[string][]int)
	for i, p := range parcels {
		if p.Fingerprint == "" {
			continue
		}
		byKey[parcelKey(p)] = append(byKey[parcelKey(p)], i)
	}

	pairs := make(map[[2]int]struct{})
	for _, idxs := range byKey {
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				pairs[[2]int{idxs[a], idxs[b]}] = struct{}{}
			}
		}
	}
	return pairs
}

func parcelKey(p model.Parcel) string {
	return p.Fingerprint + "|" + NormalizeIdentity(p.CodeProducteur)
}

// groupRows buckets rows[i] under keys[i] and keeps the buckets of size
// >= 2, sorted by key so output order is stable across runs.
func groupRows(keys []string, rows []map[string]any) []model.DuplicateGroup {
	order := make([]string, 0)
	buckets := make(map[string][]map[string]any)
	for i, k := range keys {
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], rows[i])
	}

	groups := make([]model.DuplicateGroup, 0)
	for _, k := range order {
		if members := buckets[k]; len(members) >= 2 {
			groups = append(groups, model.DuplicateGroup{Key: k, Rows: members})
		}
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Key < groups[b].Key })
	return groups
}
