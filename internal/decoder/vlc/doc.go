// Package vlc is the production decoder engine: one libVLC media player per
// decoder instance, with hardware decoding on the Raspberry Pi 5. It only
// builds on linux/arm64; other platforms use the clock engine.
package vlc
