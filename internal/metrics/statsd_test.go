package metrics

import (
	"net"
	"testing"
)

func TestFormatMetric(t *testing.T) {
	c := &StatsdClient{defaultTags: map[string]string{"host": "ns1"}}

	cases := []struct {
		metric string
		tags   map[string]string
		want   string
	}{
		{"event.filter.error", nil, "event.filter.error,host=ns1"},
		{
			"event.filter.decision",
			map[string]string{"decision": "blocked"},
			"event.filter.decision,decision=blocked,host=ns1",
		},
		{
			"latency.upstream.read",
			map[string]string{"addr": "::1", "host": "override"},
			"latency.upstream.read,addr=%3A%3A1,host=override",
		},
	}

	for _, tc := range cases {
		if got := c.formatMetric(tc.metric, tc.tags); got != tc.want {
			t.Errorf("formatMetric(%q) = %q; want %q", tc.metric, got, tc.want)
		}
	}

	bare := &StatsdClient{}
	if got := bare.formatMetric("a:b", nil); got != "a%3Ab" {
		t.Errorf("formatMetric without tags = %q", got)
	}
}

func TestIPFromAddr(t *testing.T) {
	if got := ipFromAddr(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 53}); got != "10.0.0.1" {
		t.Errorf("ipFromAddr(udp) = %q", got)
	}
	if got := ipFromAddr(nil); got != "null" {
		t.Errorf("ipFromAddr(nil) = %q", got)
	}
}
