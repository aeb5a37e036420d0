package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/shodan-notifier/internal/shodan"
)

func strPtr(s string) *string { return &s }

func TestNormalize(t *testing.T) {
	host := &shodan.Host{
		IPStr: "1.2.3.4",
		OS:    strPtr("Linux"),
		Data: []shodan.Service{
			{
				Port:      443,
				Hostnames: []string{"www.example.com", "example.com"},
				Domains:   []string{"example.com"},
				Product:   strPtr("nginx"),
				Version:   strPtr("1.18.0"),
				Vulns: map[string]json.RawMessage{
					"CVE-2021-23017": json.RawMessage(`{}`),
					"CVE-2019-20372": json.RawMessage(`{}`),
					"CVE-2020-11724": json.RawMessage(`{}`),
				},
				Timestamp: "2024-05-01T10:00:00.000000",
			},
			{
				Port:      80,
				Timestamp: "2024-05-01T09:00:00.000000",
			},
		},
	}

	rows := Normalize(host)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{
		IP:        "1.2.3.4",
		Port:      443,
		OS:        "Linux",
		Hostnames: "www.example.com|example.com",
		Domains:   "example.com",
		Product:   "nginx",
		Version:   "1.18.0",
		Vulns:     "CVE-2019-20372|CVE-2020-11724|CVE-2021-23017",
		Timestamp: "2024-05-01T10:00:00.000000",
	}, rows[0])

	assert.Equal(t, Row{
		IP:        "1.2.3.4",
		Port:      80,
		OS:        "Linux",
		Hostnames: "-",
		Domains:   "-",
		Product:   "-",
		Version:   "-",
		Vulns:     "-",
		Timestamp: "2024-05-01T09:00:00.000000",
	}, rows[1])
}

func TestNormalizeDefaults(t *testing.T) {
	tests := []struct {
		name string
		host *shodan.Host
		want []Row
	}{
		{name: "nil host", host: nil, want: nil},
		{name: "no services", host: &shodan.Host{IPStr: "1.1.1.1"}, want: nil},
		{
			name: "null os and empty strings",
			host: &shodan.Host{
				IPStr: "10.0.0.1",
				OS:    nil,
				Data: []shodan.Service{{
					Port:      22,
					Product:   strPtr(""),
					Version:   strPtr(" "),
					Hostnames: []string{},
					Vulns:     map[string]json.RawMessage{},
				}},
			},
			want: []Row{{
				IP: "10.0.0.1", Port: 22, OS: "-", Hostnames: "-", Domains: "-",
				Product: "-", Version: "-", Vulns: "-",
			}},
		},
		{
			name: "empty os string",
			host: &shodan.Host{IPStr: "10.0.0.2", OS: strPtr(""), Data: []shodan.Service{{Port: 1}}},
			want: []Row{{
				IP: "10.0.0.2", Port: 1, OS: "-", Hostnames: "-", Domains: "-",
				Product: "-", Version: "-", Vulns: "-",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.host))
		})
	}
}

func TestNormalizeVulnOrderIsStable(t *testing.T) {
	build := func(keys ...string) *shodan.Host {
		vulns := make(map[string]json.RawMessage, len(keys))
		for _, k := range keys {
			vulns[k] = json.RawMessage(`{}`)
		}
		return &shodan.Host{IPStr: "1.1.1.1", Data: []shodan.Service{{Port: 80, Vulns: vulns}}}
	}

	a := Normalize(build("CVE-2", "CVE-1", "CVE-3"))
	b := Normalize(build("CVE-3", "CVE-2", "CVE-1"))

	assert.Equal(t, "CVE-1|CVE-2|CVE-3", a[0].Vulns)
	assert.Equal(t, a[0].IdentityKey(), b[0].IdentityKey())
}
