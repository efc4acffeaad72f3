package geocode

import (
	"context"
	"fmt"
	"math"

	"github.com/mmcdole/sift/internal/domain"
)

// Offline is a geocoder that needs no network: it renders the coordinate
// itself as the label. Stands in wherever a real provider is not configured.
type Offline struct{}

func (Offline) ReverseGeocode(_ context.Context, coord domain.Coordinate) (string, error) {
	ns := "N"
	if coord.Latitude < 0 {
		ns = "S"
	}
	ew := "E"
	if coord.Longitude < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.2f°%s, %.2f°%s",
		math.Abs(coord.Latitude), ns, math.Abs(coord.Longitude), ew), nil
}
