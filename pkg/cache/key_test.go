package cache

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "operation without params",
			key:  Key{Operation: "leagues"},
			want: "tripcost:leagues",
		},
		{
			name: "single param",
			key:  NewKey("match_details", 1035037),
			want: "tripcost:match_details:1035037",
		},
		{
			name: "multiple params keep call order",
			key:  NewKey("flight", "London", "Madrid", "2024-03-10"),
			want: "tripcost:flight:London:Madrid:2024-03-10",
		},
		{
			name: "separator inside param is escaped",
			key:  NewKey("hotel", "a:b", "c"),
			want: "tripcost:hotel:a%3Ab:c",
		},
		{
			name: "spaces are escaped",
			key:  NewKey("flight", "New York", "Madrid"),
			want: "tripcost:flight:New+York:Madrid",
		},
		{
			name: "operation colons trimmed",
			key:  Key{Operation: ":teams:", Params: []string{"39"}},
			want: "tripcost:teams:39",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	k1 := NewKey("matches", 33, "home")
	k2 := NewKey("matches", 33, "home")
	if k1.String() != k2.String() {
		t.Errorf("same inputs produced different keys: %s vs %s", k1, k2)
	}
}

func TestKey_OrderSensitive(t *testing.T) {
	ab := NewKey("flight", "London", "Madrid").String()
	ba := NewKey("flight", "Madrid", "London").String()
	if ab == ba {
		t.Errorf("swapped params produced the same key %s", ab)
	}
}

func TestKey_NoCollisionAcrossSplits(t *testing.T) {
	k1 := NewKey("hotel", "a:b", "c").String()
	k2 := NewKey("hotel", "a", "b:c").String()
	if k1 == k2 {
		t.Errorf("different param splits collided: %s", k1)
	}
}
