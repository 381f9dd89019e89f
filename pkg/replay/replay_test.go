package replay

import "testing"

func TestKey(t *testing.T) {
	if got := Key("dh37fgj492je", "1353832234", "j4h3g2"); got != "dh37fgj492je:1353832234:j4h3g2" {
		t.Errorf("Key = %q", got)
	}
}
