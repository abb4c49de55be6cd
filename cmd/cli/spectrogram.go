package main

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/eligwz/spectrogram"

	"github.com/aryanmaurya/EchoTrace/internal/audio"
)

// handleSpectrogram renders a WAV file's spectrogram to PNG. Debug aid
// for tuning peak extraction parameters.
func handleSpectrogram() {
	if len(cmdArgs) < 3 {
		fmt.Println("Usage: echotrace spectrogram <wav_file> <out.png>")
		os.Exit(1)
	}
	wavPath, outPath := cmdArgs[1], cmdArgs[2]

	samples, sampleRate, channels, err := audio.ReadWAV(wavPath)
	if err != nil {
		fmt.Printf("❌ Failed to read WAV: %v\n", err)
		os.Exit(1)
	}

	clip, err := audio.Preprocess(samples, sampleRate, channels)
	if err != nil {
		fmt.Printf("❌ Failed to preprocess: %v\n", err)
		os.Exit(1)
	}

	const (
		width  = 2048
		height = 512
	)
	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))

	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude, linear scale
	spectrogram.Drawfft(
		img,
		clip.Samples,
		uint32(clip.SampleRate),
		uint32(height),
		false, // RECTANGLE: use Hamming window
		false, // DFT: use FFT instead
		true,  // MAG: magnitude
		false, // LOG10: linear scale
	)

	if err := spectrogram.SavePng(img, outPath); err != nil {
		fmt.Printf("❌ Failed to save PNG: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Saved spectrogram to %s\n", outPath)
}
