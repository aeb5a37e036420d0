package shodan

import "encoding/json"

// Host is the subset of the Shodan host document the notifier consumes.
type Host struct {
	IPStr     string    `json:"ip_str"`
	OS        *string   `json:"os"`
	Hostnames []string  `json:"hostnames"`
	Ports     []int     `json:"ports"`
	Data      []Service `json:"data"`
}

// Service is one banner entry of a host, one per exposed port/transport.
type Service struct {
	Port      int      `json:"port"`
	Transport string   `json:"transport"`
	Hostnames []string `json:"hostnames"`
	Domains   []string `json:"domains"`
	Product   *string  `json:"product"`
	Version   *string  `json:"version"`

	// Keyed by vulnerability id (CVE-...). The values carry CVSS and
	// references which the notifier does not interpret.
	Vulns map[string]json.RawMessage `json:"vulns"`

	Timestamp string `json:"timestamp"`
}

// apiError is the error body returned by the Shodan REST API.
type apiError struct {
	Error string `json:"error"`
}
