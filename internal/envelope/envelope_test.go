package envelope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildData_BroadcastShape(t *testing.T) {
	payloads := []any{
		"hi",
		nil,
		42,
		map[string]any{"z": 1, "a": []any{"x"}},
		[]string{"one", "two"},
	}

	for _, p := range payloads {
		d := BuildData("X", "room-1", p)
		assert.Equal(t, Broadcast{Payload: p, EventType: "load"}, d.Broadcast)
		assert.Equal(t, "X", d.Action)
		assert.Equal(t, "room-1", d.Room)
	}
}

func TestBuildData_AcceptsEmptyInputs(t *testing.T) {
	d := BuildData("", "", nil)

	assert.Empty(t, d.Action)
	assert.Empty(t, d.Room)
	assert.Nil(t, d.Broadcast.Payload)
	assert.Equal(t, EventTypeLoad, d.Broadcast.EventType)
}

func TestBuild_IsStructurallyIdempotent(t *testing.T) {
	a := BuildMessage("s", BuildData(DataAction, "3", "hi"), DefaultAction, 1, "tok")
	b := BuildMessage("s", BuildData(DataAction, "3", "hi"), DefaultAction, 1, "tok")

	assert.Equal(t, a, b)
}

func TestMessage_OwnsItsData(t *testing.T) {
	d := BuildData(DataAction, "3", "hi")
	m := BuildMessage("s", d, DefaultAction, 1, "tok")

	d.Room = "changed"
	assert.Equal(t, "3", m.Data.Room)
}

func TestSerialize_ExactBytes(t *testing.T) {
	m := BuildMessage(DefaultSender, BuildData(DataAction, "3", "hi"), DefaultAction, DefaultN, "incorrect")

	got, err := Serialize(m)
	require.NoError(t, err)

	want := `{"action":"[broadcast] send","data":{"action":"[el-jupyter] message",` +
		`"broadcast":{"eventType":"load","payload":"hi"},"room":"3"},` +
		`"n":1,"sender":"lively_client client","token":"incorrect"}`
	assert.Equal(t, want, got)
}

func TestSerialize_SortsPayloadKeys(t *testing.T) {
	type cell struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
	}
	payload := map[string]any{
		"source": "print(1)",
		"cells":  []cell{{Zeta: 2, Alpha: "b"}},
		"<tag>":  "a & b",
	}
	m := BuildMessage("s", BuildData(DataAction, "r", payload), "a", 7, "t")

	got, err := Serialize(m)
	require.NoError(t, err)

	assert.Contains(t, got, `"payload":{"<tag>":"a & b","cells":[{"alpha":"b","zeta":2}],"source":"print(1)"}`)
	assertKeysSorted(t, got)
}

func TestSerialize_KeepsLargeIntegers(t *testing.T) {
	m := BuildMessage("s", BuildData(DataAction, "r", map[string]any{"id": int64(9007199254740993)}), "a", 1, "t")

	got, err := Serialize(m)
	require.NoError(t, err)
	assert.Contains(t, got, `{"id":9007199254740993}`)
}

func TestSerialize_NonASCIIAndWholeFloats(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"utf8 stays raw", "héllo ☃", `"payload":"héllo ☃"`},
		{"whole float drops fraction", 1.0, `"payload":1`},
		{"fraction kept", 2.5, `"payload":2.5`},
		{"line separator escaped", "a\u2028b", `"payload":"a\u2028b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Serialize(BuildMessage("s", BuildData(DataAction, "r", tt.payload), "a", 1, "t"))
			require.NoError(t, err)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestMessage_Redacted(t *testing.T) {
	m := BuildMessage("s", BuildData(DataAction, "r", "hi"), "a", 1, "realm-secret")

	red := m.Redacted()
	assert.Equal(t, RedactedToken, red.Token)
	assert.Equal(t, "realm-secret", m.Token)
	assert.Equal(t, m.Data, red.Data)

	got, err := Serialize(red)
	require.NoError(t, err)
	assert.NotContains(t, got, "realm-secret")
	assert.Contains(t, got, `"token":"[redacted]"`)

	assert.Empty(t, BuildMessage("s", Data{}, "a", 1, "").Redacted().Token)
}

func TestSerialize_UnsupportedPayload(t *testing.T) {
	m := BuildMessage("s", BuildData(DataAction, "r", make(chan int)), "a", 1, "t")

	_, err := Serialize(m)
	assert.Error(t, err)
}

func TestToWire_RoundTrip(t *testing.T) {
	m := BuildMessage("sender", BuildData(DataAction, "3", map[string]any{"k": "v"}), DefaultAction, 4, "tok")

	wire, err := ToWire(m)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"action": DefaultAction,
		"data": map[string]any{
			"action": DataAction,
			"broadcast": map[string]any{
				"eventType": "load",
				"payload":   map[string]any{"k": "v"},
			},
			"room": "3",
		},
		"n":      json.Number("4"),
		"sender": "sender",
		"token":  "tok",
	}, wire)
}

func TestMarshalJSON_MatchesSerialize(t *testing.T) {
	m := BuildMessage("s", BuildData(DataAction, "r", []any{1, "two"}), "a", 1, "t")

	viaMarshal, err := json.Marshal(m)
	require.NoError(t, err)
	viaSerialize, err := Serialize(m)
	require.NoError(t, err)

	assert.Equal(t, viaSerialize, string(viaMarshal))
}

func TestParseWire_Invalid(t *testing.T) {
	_, err := ParseWire("{not json")
	assert.Error(t, err)
}

// assertKeysSorted walks the decoded token stream and checks that keys of every
// object appear in strictly increasing order.
func assertKeysSorted(t *testing.T, raw string) {
	t.Helper()

	dec := json.NewDecoder(strings.NewReader(raw))
	type frame struct {
		object  bool
		wantKey bool
		last    string
		first   bool
	}
	var stack []*frame

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}

		var top *frame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}

		if top != nil && top.object && top.wantKey {
			if key, ok := tok.(string); ok {
				if !top.first {
					assert.Less(t, top.last, key, "keys out of order")
				}
				top.last, top.first, top.wantKey = key, false, false
				continue
			}
		}

		switch tok {
		case json.Delim('{'):
			stack = append(stack, &frame{object: true, wantKey: true, first: true})
			continue
		case json.Delim('['):
			stack = append(stack, &frame{})
			continue
		case json.Delim('}'), json.Delim(']'):
			stack = stack[:len(stack)-1]
		}

		if len(stack) > 0 && stack[len(stack)-1].object {
			stack[len(stack)-1].wantKey = true
		}
	}
}
