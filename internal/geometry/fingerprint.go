package geometry

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// Fingerprint returns the hex SHA-256 of the geometry's little-endian
// EWKB encoding. Byte-identical geometries, and only those, share a
// fingerprint.
func Fingerprint(g geom.T) (string, error) {
	b, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return "", eris.Wrap(err, "geometry: marshal ewkb")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
