package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		in     float32
		want   int16
		wantOK bool
	}{
		{0, 0, true},
		{1, 32767, true},
		{-1, -32767, true},
		{2.5, 32767, true},
		{-3, -32767, true},
		{0.5, 16384, true},
		{float32(math.NaN()), 0, false},
		{float32(math.Inf(1)), 0, false},
		{float32(math.Inf(-1)), 0, false},
	}
	for _, tt := range tests {
		got, ok := FloatToPCM16(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("FloatToPCM16(%v) = %d,%v want %d,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	data := EncodeWAV([]float32{0, 0.5, -0.5, 1}, 16000)
	if len(data) != WAVHeaderSize+8 {
		t.Fatalf("len = %d, want %d", len(data), WAVHeaderSize+8)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad magic: %q", data[:44])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 16000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 8 {
		t.Errorf("data size = %d, want 8", got)
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 44 {
		t.Errorf("riff size = %d, want 44", got)
	}
}

func TestEncodeWAVSkipsNonFinite(t *testing.T) {
	data := EncodeWAV([]float32{0.1, float32(math.NaN()), 0.2}, 8000)
	if len(data) != WAVHeaderSize+4 {
		t.Fatalf("len = %d, want %d", len(data), WAVHeaderSize+4)
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 1, -1}
	samples, rate, err := DecodeWAV(EncodeWAV(in, 44100))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 44100 {
		t.Errorf("rate = %d", rate)
	}
	if len(samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(samples), len(in))
	}
	for i := range in {
		if d := math.Abs(float64(samples[i] - in[i])); d > 1.0/32767 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], in[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file at all")); !errors.Is(err, ErrUnsupportedWAV) {
		t.Errorf("err = %v, want ErrUnsupportedWAV", err)
	}
}

func TestDurationMs(t *testing.T) {
	tests := []struct {
		samples int64
		rate    uint32
		want    int64
	}{
		{200000, 16000, 12500},
		{16000, 16000, 1000},
		{1, 3, 333},
		{2, 3, 667},
		{100, 0, 0},
	}
	for _, tt := range tests {
		if got := DurationMs(tt.samples, tt.rate); got != tt.want {
			t.Errorf("DurationMs(%d, %d) = %d, want %d", tt.samples, tt.rate, got, tt.want)
		}
	}
}

func TestEncodeFLAC(t *testing.T) {
	samples := make([]float32, FlacBlockSize*2+100)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 20))
	}
	data, err := EncodeFLAC(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeFLAC: %v", err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFakeEngineSubscriptions(t *testing.T) {
	e := NewFakeEngine(16000)
	rate, err := e.StartCapture(context.Background(), "")
	if err != nil || rate != 16000 {
		t.Fatalf("StartCapture = %d, %v", rate, err)
	}
	if _, err := e.StartCapture(context.Background(), ""); !errors.Is(err, ErrAlreadyCapturing) {
		t.Errorf("second start err = %v", err)
	}

	var got int
	unsubscribe := e.Subscribe(func(s []float32) { got += len(s) })
	e.Emit(make([]float32, 10))
	unsubscribe()
	unsubscribe()
	e.Emit(make([]float32, 10))

	if got != 10 {
		t.Errorf("received %d samples, want 10", got)
	}
	if e.Subscribers() != 0 {
		t.Errorf("subscribers = %d after unsubscribe", e.Subscribers())
	}
}

func TestDecodeFloat32(t *testing.T) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(-0.25))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(1))
	got := decodeFloat32(buf, 5)
	if len(got) != 3 || got[0] != 0.5 || got[1] != -0.25 || got[2] != 1 {
		t.Errorf("decodeFloat32 = %v", got)
	}
}
