package dataconn

import "testing"

func TestPORTRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		host string
		port int
	}{
		{"127.0.0.1", 50000},
		{"192.168.1.1", 0},
		{"10.0.0.255", 65535},
	}
	for _, tt := range tests {
		enc, err := EncodePORT(tt.host, tt.port)
		if err != nil {
			t.Fatalf("EncodePORT(%s, %d) error = %v", tt.host, tt.port, err)
		}
		gotHost, gotPort, err := DecodePORT(enc)
		if err != nil {
			t.Fatalf("DecodePORT(%q) error = %v", enc, err)
		}
		if gotHost != tt.host || gotPort != tt.port {
			t.Errorf("round trip = (%s, %d), want (%s, %d)", gotHost, gotPort, tt.host, tt.port)
		}
	}
}

func TestPORTExample(t *testing.T) {
	t.Parallel()
	got, err := EncodePORT("127.0.0.1", 50000)
	if err != nil {
		t.Fatalf("EncodePORT() error = %v", err)
	}
	if want := "127,0,0,1,195,80"; got != want {
		t.Errorf("EncodePORT() = %q, want %q", got, want)
	}
}

func TestEPRTRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		host   string
		port   int
		family int
	}{
		{"127.0.0.1", 50000, 1},
		{"::1", 21000, 2},
		{"fe80::1", 65535, 2},
	}
	for _, tt := range tests {
		enc, err := EncodeEPRT(tt.host, tt.port)
		if err != nil {
			t.Fatalf("EncodeEPRT(%s, %d) error = %v", tt.host, tt.port, err)
		}
		family, addr, port, err := DecodeEPRT(enc)
		if err != nil {
			t.Fatalf("DecodeEPRT(%q) error = %v", enc, err)
		}
		if family != tt.family || addr != tt.host || port != tt.port {
			t.Errorf("round trip = (%d, %s, %d), want (%d, %s, %d)", family, addr, port, tt.family, tt.host, tt.port)
		}
	}
}

func TestDecodePORT_Invalid(t *testing.T) {
	t.Parallel()
	if _, _, err := DecodePORT("1,2,3,4,5"); err == nil {
		t.Fatal("expected error for short PORT argument")
	}
	if _, _, err := DecodePORT("1,2,3,4,5,999"); err == nil {
		t.Fatal("expected error for out-of-range octet")
	}
}

func TestParsePASV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{
			name:     "standard form",
			input:    "Entering Passive Mode (192,168,1,1,195,149)",
			wantHost: "192.168.1.1",
			wantPort: 195*256 + 149,
		},
		{
			name:     "equals delimiter",
			input:    "Entering Passive Mode =127,0,0,1,195,80=",
			wantHost: "127.0.0.1",
			wantPort: 195*256 + 80,
		},
		{
			name:    "malformed",
			input:   "no tuple here",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := ParsePASV(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePASV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("ParsePASV() = (%s, %d), want (%s, %d)", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestParseEPSV(t *testing.T) {
	t.Parallel()
	port, err := ParseEPSV("Entering Extended Passive Mode (|||6446|)")
	if err != nil {
		t.Fatalf("ParseEPSV() error = %v", err)
	}
	if port != 6446 {
		t.Errorf("ParseEPSV() = %d, want 6446", port)
	}
	if _, err := ParseEPSV("no port here"); err == nil {
		t.Fatal("expected error for malformed EPSV reply")
	}
}

func TestFormatEPSVReply(t *testing.T) {
	t.Parallel()
	got := FormatEPSVReply(6446)
	want := "Entering Extended Passive Mode (|||6446|)"
	if got != want {
		t.Errorf("FormatEPSVReply() = %q, want %q", got, want)
	}
	port, err := ParseEPSV(got)
	if err != nil || port != 6446 {
		t.Errorf("round trip = (%d, %v), want (6446, nil)", port, err)
	}
}

func TestFormatPASVReply(t *testing.T) {
	t.Parallel()
	got := FormatPASVReply("127.0.0.1", 50000)
	want := "Entering Passive Mode (127,0,0,1,195,80)"
	if got != want {
		t.Errorf("FormatPASVReply() = %q, want %q", got, want)
	}
	// Round trip through ParsePASV.
	host, port, err := ParsePASV(got)
	if err != nil {
		t.Fatalf("ParsePASV() error = %v", err)
	}
	if host != "127.0.0.1" || port != 50000 {
		t.Errorf("round trip = (%s, %d), want (127.0.0.1, 50000)", host, port)
	}
}
