package mqtt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vak-lab-northwestern/Real-Capacitive-Sensing/pkg/scan"
)

func TestPayloadConverted(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	v := 47.123
	p := payload{Timestamp: ts.UnixMilli(), Row: 2, Col: 3, Raw: 1000000, PF: &v, Valid: true}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"timestamp":1700000000123,"row":2,"col":3,"raw":1000000,"capacitance_pf":47.123,"valid":true}`
	if string(b) != want {
		t.Fatalf("payload = %s; want %s", b, want)
	}
}

func TestPayloadRawOmitsCapacitance(t *testing.T) {
	p := payload{Timestamp: 1, Raw: 42, Valid: true}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "capacitance_pf") {
		t.Fatalf("raw payload should omit capacitance: %s", b)
	}
}

func TestNodeTopic(t *testing.T) {
	m := &MQTT{topic: "capgrid"}
	r := scan.Result{Addr: scan.Address{Row: 5, Col: 7}}
	got := m.nodeTopic(r)
	if got != "capgrid/5/7" {
		t.Fatalf("topic = %q", got)
	}
}
