package vmess

import (
	"encoding/base64"
	"testing"
)

func FuzzParseSubscription(f *testing.F) {
	node := `{"add":"1.2.3.4","port":443,"id":"abc-123","ps":"A"}`
	uri := "vmess://" + base64.StdEncoding.EncodeToString([]byte(node))

	seed := []string{
		"",
		"   \n",
		base64.StdEncoding.EncodeToString([]byte(uri + "\n")),
		base64.StdEncoding.EncodeToString([]byte(uri + "\n" + "vmess://garbage\n")),
		base64.RawStdEncoding.EncodeToString([]byte(uri + "\n")),
		"not base64 at all",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, content string) {
		servers, skips, err := ParseSubscription("https://example.com/sub", content)
		if err != nil {
			if len(servers) != 0 || len(skips) != 0 {
				t.Fatalf("non-empty result on error")
			}
			return
		}

		if len(servers)+len(skips) == 0 {
			t.Fatalf("decoded subscription yielded neither servers nor skips")
		}
		for _, srv := range servers {
			if srv.Address == "" {
				t.Fatalf("empty address")
			}
			if srv.Port < 1 || srv.Port > 65535 {
				t.Fatalf("port out of range: %d", srv.Port)
			}
			if srv.ID == "" {
				t.Fatalf("empty id")
			}
			if srv.Alias == "" {
				t.Fatalf("empty alias")
			}
			if srv.Network == "" || srv.TLS == "" || srv.Security == "" {
				t.Fatalf("unnormalized transport fields: %+v", srv)
			}
		}
	})
}
