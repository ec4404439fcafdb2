package worker

import (
	"encoding/binary"
	"math"
	"os"

	"redub/internal/services"
	"redub/internal/transport"
)

const (
	// Pitch detection band, in Hz. Covers human speech from low male
	// voices up past child voices.
	pitchMinHz = 50.0
	pitchMaxHz = 500.0

	analysisFrameMS = 50

	// voicedThreshold is the minimum normalized autocorrelation peak for
	// a frame to count as voiced.
	voicedThreshold = 0.5

	// voiceVerifyThreshold is the overall similarity above which a clip
	// is accepted as the stored speaker.
	voiceVerifyThreshold = 0.70
)

// analyzeVoiceFile extracts pitch, brightness, and energy statistics from a
// PCM WAV file.
func analyzeVoiceFile(path string) (transport.VoiceMetrics, error) {
	samples, sampleRate, err := readPCMWav(path)
	if err != nil {
		return transport.VoiceMetrics{}, err
	}
	if len(samples) == 0 || sampleRate <= 0 {
		return transport.VoiceMetrics{}, services.Wrap(services.ErrInvalidRequest, "worker", "voice_analysis", "empty audio", nil)
	}

	metrics := transport.VoiceMetrics{
		SampleRate:      sampleRate,
		DurationSeconds: float64(len(samples)) / float64(sampleRate),
	}

	frame := sampleRate * analysisFrameMS / 1000
	if frame < 2 || frame > len(samples) {
		frame = len(samples)
	}
	var (
		pitches   []float64
		crossings float64
		energySum float64
		frames    int
	)
	for start := 0; start+frame <= len(samples); start += frame {
		window := samples[start : start+frame]
		frames++
		energySum += rms(window)
		crossings += zeroCrossingRate(window)
		if pitch, ok := framePitch(window, sampleRate); ok {
			pitches = append(pitches, pitch)
		}
	}
	if frames == 0 {
		return transport.VoiceMetrics{}, services.Wrap(services.ErrInvalidRequest, "worker", "voice_analysis", "clip too short", nil)
	}

	metrics.EnergyMean = energySum / float64(frames)
	// Zero crossings per second approximate twice the dominant frequency.
	metrics.BrightnessHz = crossings / float64(frames) * float64(sampleRate) / 2

	if len(pitches) > 0 {
		mean, std, lo, hi := pitchStats(pitches)
		metrics.PitchMeanHz = mean
		metrics.PitchStdHz = std
		metrics.PitchMinHz = lo
		metrics.PitchMaxHz = hi
	}
	metrics.VoiceType = classifyVoice(metrics.PitchMeanHz)
	return metrics, nil
}

// compareVoiceMetrics scores clip against reference: 40% pitch, 30%
// brightness, 30% energy, each normalized against the reference value.
func compareVoiceMetrics(reference, clip transport.VoiceMetrics) transport.VoiceSimilarity {
	var sim transport.VoiceSimilarity
	if reference.PitchMeanHz > 0 && clip.PitchMeanHz > 0 {
		sim.Pitch = math.Max(0, 1-math.Abs(reference.PitchMeanHz-clip.PitchMeanHz)/reference.PitchMeanHz)
	}
	if reference.BrightnessHz > 0 {
		sim.Brightness = math.Max(0, 1-math.Abs(reference.BrightnessHz-clip.BrightnessHz)/reference.BrightnessHz)
	}
	if reference.EnergyMean > 0 {
		sim.Energy = math.Max(0, 1-math.Abs(reference.EnergyMean-clip.EnergyMean)/reference.EnergyMean)
	}
	sim.Overall = sim.Pitch*0.4 + sim.Brightness*0.3 + sim.Energy*0.3
	return sim
}

func classifyVoice(pitchMeanHz float64) string {
	switch {
	case pitchMeanHz > 200:
		return "High (female/child)"
	case pitchMeanHz > 140:
		return "Medium"
	case pitchMeanHz > 0:
		return "Low (male)"
	default:
		return "unknown"
	}
}

// framePitch estimates the fundamental frequency of one frame by picking
// the strongest normalized autocorrelation peak inside the pitch band.
func framePitch(window []float64, sampleRate int) (float64, bool) {
	minLag := int(float64(sampleRate) / pitchMaxHz)
	maxLag := int(float64(sampleRate) / pitchMinHz)
	if maxLag >= len(window) {
		maxLag = len(window) - 1
	}
	if minLag < 1 || minLag >= maxLag {
		return 0, false
	}
	var energy float64
	for _, s := range window {
		energy += s * s
	}
	if energy == 0 {
		return 0, false
	}
	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(window); i++ {
			corr += window[i] * window[i+lag]
		}
		corr /= energy
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 || bestCorr < voicedThreshold {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}

func pitchStats(values []float64) (mean, std, lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values {
		mean += v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std, lo, hi
}

func rms(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(window)))
}

func zeroCrossingRate(window []float64) float64 {
	if len(window) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(window); i++ {
		if (window[i-1] >= 0) != (window[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(window)-1)
}

// readPCMWav loads a 16-bit PCM WAV file as mono samples in [-1,1],
// averaging channels down when the file is multi-channel.
func readPCMWav(path string) ([]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrExternalTool, "worker", "voice_analysis", "read audio", err)
	}
	malformed := func(msg string) error {
		return services.Wrap(services.ErrInvalidRequest, "worker", "voice_analysis", msg, nil)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, malformed("not a RIFF WAVE file")
	}
	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
		haveFmt    bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, malformed("truncated fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(data[body : body+2]); format != 1 {
				return nil, 0, malformed("unsupported WAV encoding")
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcm = data[body : body+size]
		}
		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}
	if !haveFmt || pcm == nil {
		return nil, 0, malformed("missing fmt or data chunk")
	}
	if bits != 16 || channels < 1 {
		return nil, 0, malformed("only 16-bit PCM is supported")
	}
	frameBytes := channels * 2
	n := len(pcm) / frameBytes
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+c*2:]))
			sum += float64(v)
		}
		samples[i] = sum / float64(channels) / 32768.0
	}
	return samples, sampleRate, nil
}
