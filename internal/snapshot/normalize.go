package snapshot

import (
	"slices"
	"strings"

	"github.com/anstrom/shodan-notifier/internal/shodan"
)

// Normalize flattens a host record into one row per service entry. A nil
// host, or one without service data, yields no rows. Seq is left unset.
func Normalize(host *shodan.Host) []Row {
	if host == nil || len(host.Data) == 0 {
		return nil
	}

	hostOS := orPlaceholder(host.OS)

	rows := make([]Row, 0, len(host.Data))
	for i := range host.Data {
		svc := &host.Data[i]
		rows = append(rows, Row{
			IP:        host.IPStr,
			Port:      svc.Port,
			OS:        hostOS,
			Hostnames: joinList(svc.Hostnames),
			Domains:   joinList(svc.Domains),
			Product:   orPlaceholder(svc.Product),
			Version:   orPlaceholder(svc.Version),
			Vulns:     vulnIDs(svc),
			Timestamp: svc.Timestamp,
		})
	}

	return rows
}

func orPlaceholder(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return Placeholder
	}
	return *s
}

func joinList(items []string) string {
	if len(items) == 0 {
		return Placeholder
	}
	return strings.Join(items, ListSeparator)
}

// vulnIDs returns the sorted vulnerability ids. Sorting keeps the column
// stable when the API returns the same set in a different key order.
func vulnIDs(svc *shodan.Service) string {
	if len(svc.Vulns) == 0 {
		return Placeholder
	}

	ids := make([]string, 0, len(svc.Vulns))
	for id := range svc.Vulns {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return strings.Join(ids, ListSeparator)
}
