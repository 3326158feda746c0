package encoder

import (
	"encoding/binary"
	"io"
	"testing"
)

func TestWavEncoderMono(t *testing.T) {
	samples := make([]int16, SampleRate/2)
	for i := range samples {
		samples[i] = int16(i%200 - 100)
	}

	enc := NewWav(SampleRate, Channels)
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			t.Fatalf("EncodeBlock: %v", err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := enc.Bytes()
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", data[0:4], data[8:12])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != BitsPerSample {
		t.Errorf("bits per sample = %d, want %d", got, BitsPerSample)
	}
	if want := 44 + len(samples)*2; len(data) != want {
		t.Errorf("len = %d, want %d", len(data), want)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); int(got) != len(samples)*2 {
		t.Errorf("data chunk size = %d, want %d", got, len(samples)*2)
	}
	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}
	if got := int16(binary.LittleEndian.Uint16(data[44+2*7:])); got != samples[7] {
		t.Errorf("sample 7 = %d, want %d", got, samples[7])
	}
}

func TestWavEncoderEmpty(t *testing.T) {
	enc := NewWav(SampleRate, Channels)
	if err := enc.EncodeBlock(nil); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	data := enc.Bytes()
	if len(data) != 44 {
		t.Fatalf("len = %d, want bare header", len(data))
	}
	if string(data[36:40]) != "data" {
		t.Errorf("missing data chunk: %q", data[36:40])
	}
	if err := enc.EncodeBlock([]int16{1}); err == nil {
		t.Error("EncodeBlock after Close should fail")
	}
}

func TestByteRate(t *testing.T) {
	if got := ByteRate(16000, 1); got != 32000 {
		t.Errorf("ByteRate(16000, 1) = %d", got)
	}
}

func TestMemFileSeek(t *testing.T) {
	var m memFile
	m.Write([]byte("abcdef"))
	if _, err := m.Seek(2, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	m.Write([]byte("XY"))
	if string(m.data) != "abXYef" {
		t.Errorf("data = %q", m.data)
	}
	if pos, _ := m.Seek(0, io.SeekEnd); pos != 6 {
		t.Errorf("end = %d", pos)
	}
	if _, err := m.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative seek should fail")
	}
}
