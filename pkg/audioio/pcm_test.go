package audioio

import (
	"errors"
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestFloat32ToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []int16
	}{
		{"silence", []float32{0, 0}, []int16{0, 0}},
		{"full scale", []float32{1, -1}, []int16{32767, -32767}},
		{"clamps", []float32{1.5, -3}, []int16{32767, -32767}},
		{"half", []float32{0.5}, []int16{16383}},
		{"nan", []float32{float32(math.NaN())}, []int16{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BytesToSamples(Float32ToPCM16(tt.in))
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d samples, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Sample %d: expected %d, got %d", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestFloat32ToPCM16_LittleEndian(t *testing.T) {
	data := Float32ToPCM16([]float32{1})
	if data[0] != 0xff || data[1] != 0x7f {
		t.Errorf("Expected ff 7f, got %02x %02x", data[0], data[1])
	}
}

func TestPCM16ToFloat32(t *testing.T) {
	samples, err := PCM16ToFloat32(SamplesToBytes([]int16{0, 16384, -32768}))
	if err != nil {
		t.Fatalf("PCM16ToFloat32 failed: %v", err)
	}
	want := []float32{0, 0.5, -1}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], samples[i])
		}
	}
}

func TestPCM16ToFloat32_OddLength(t *testing.T) {
	_, err := PCM16ToFloat32([]byte{1, 2, 3})
	if !errors.Is(err, ErrOddLength) {
		t.Errorf("Expected ErrOddLength, got %v", err)
	}
}

func TestPCM16_StaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOf(rapid.Float32Range(-4, 4)).Draw(t, "samples")
		out, err := PCM16ToFloat32(Float32ToPCM16(in))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(out) != len(in) {
			t.Fatalf("length %d, want %d", len(out), len(in))
		}
		for i, s := range out {
			if s < -1 || s > 1 {
				t.Fatalf("sample %d out of range: %v", i, s)
			}
			clamped := float64(min(max(in[i], -1), 1))
			if math.Abs(float64(s)-clamped) > 1.0/16384 {
				t.Fatalf("sample %d: got %v, want ~%v", i, s, clamped)
			}
		}
	})
}

func TestSamplesToBytes(t *testing.T) {
	data := SamplesToBytes([]int16{0x0102, 0x0304})
	expected := []byte{0x02, 0x01, 0x04, 0x03}
	for i, b := range expected {
		if data[i] != b {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, b, data[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	mono := Downmix([]float32{0.2, 0.4, -1, 1}, 2, 1)
	want := []float32{0.3, 0}
	for i := range want {
		if math.Abs(float64(mono[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], mono[i])
		}
	}

	stereo := Downmix([]float32{0.1, 0.2}, 1, 2)
	if len(stereo) != 4 || stereo[0] != 0.1 || stereo[1] != 0.1 || stereo[3] != 0.2 {
		t.Errorf("Unexpected upmix result %v", stereo)
	}
}

func TestResampleFloat32(t *testing.T) {
	t.Run("same rate", func(t *testing.T) {
		in := []float32{0.1, 0.2}
		if out := ResampleFloat32(in, 16000, 16000); len(out) != 2 {
			t.Errorf("Expected 2 samples, got %d", len(out))
		}
	})

	t.Run("downsample", func(t *testing.T) {
		out := ResampleFloat32(make([]float32, 960), 48000, 16000)
		if len(out) != 320 {
			t.Errorf("Expected 320 samples, got %d", len(out))
		}
	})

	t.Run("upsample", func(t *testing.T) {
		out := ResampleFloat32(make([]float32, 320), 16000, 24000)
		if len(out) != 480 {
			t.Errorf("Expected 480 samples, got %d", len(out))
		}
	})

	t.Run("empty", func(t *testing.T) {
		if out := ResampleFloat32(nil, 16000, 48000); len(out) != 0 {
			t.Errorf("Expected empty result")
		}
	})
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS([]float32{0, 0}); rms != 0 {
		t.Errorf("Expected RMS 0 for silence, got %f", rms)
	}
	if rms := CalculateRMS([]float32{1, -1}); math.Abs(rms-1) > 1e-9 {
		t.Errorf("Expected RMS 1 for full scale, got %f", rms)
	}
	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("Expected RMS 0 for empty, got %f", rms)
	}
}

func BenchmarkFloat32ToPCM16(b *testing.B) {
	samples := make([]float32, 4096)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Float32ToPCM16(samples)
	}
}
