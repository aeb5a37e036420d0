package snapshot

import (
	"encoding/csv"
	"strconv"
	"strings"
)

const (
	// Placeholder stands in for absent or empty values.
	Placeholder = "-"

	// ListSeparator joins multi-valued columns.
	ListSeparator = "|"

	columnCount = 10
)

// Columns are the report column names in storage order.
var Columns = []string{"No", "IP", "Port", "OS", "Hostnames", "Domains", "Product", "Version", "Vulns", "Timestamp"}

// Row is one exposed service of one host.
type Row struct {
	// Seq is the 1-based position inside its Snapshot, not an identity.
	Seq       int
	IP        string
	Port      int
	OS        string
	Hostnames string
	Domains   string
	Product   string
	Version   string
	Vulns     string

	// Timestamp is passed through in the API's format.
	Timestamp string
}

// Identity is the comparable part of a Row. Seq and Timestamp are left out
// because they change between runs without anything meaningful changing.
type Identity struct {
	IP        string
	Port      int
	OS        string
	Hostnames string
	Domains   string
	Product   string
	Version   string
	Vulns     string
}

// Identity returns the row's identity tuple.
func (r Row) Identity() Identity {
	return Identity{
		IP:        r.IP,
		Port:      r.Port,
		OS:        r.OS,
		Hostnames: r.Hostnames,
		Domains:   r.Domains,
		Product:   r.Product,
		Version:   r.Version,
		Vulns:     r.Vulns,
	}
}

// IdentityKey returns the identity projection as one line of text: the
// stored row with its first and last column dropped.
func (r Row) IdentityKey() string {
	fields := r.Fields()
	return encodeLine(fields[1 : columnCount-1])
}

// Fields returns the row's columns in storage order.
func (r Row) Fields() []string {
	return []string{
		strconv.Itoa(r.Seq),
		r.IP,
		strconv.Itoa(r.Port),
		r.OS,
		r.Hostnames,
		r.Domains,
		r.Product,
		r.Version,
		r.Vulns,
		r.Timestamp,
	}
}

// String returns the row as it is stored, without the line terminator.
func (r Row) String() string {
	return encodeLine(r.Fields())
}

func encodeLine(fields []string) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	// Write only fails on the underlying writer, and strings.Builder never does.
	_ = w.Write(fields)
	w.Flush()
	return strings.TrimRight(b.String(), "\r\n")
}
