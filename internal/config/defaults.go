package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the default value of every key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("session.window_size", 30)
	v.SetDefault("session.confidence_threshold", 0.8)
	v.SetDefault("session.consistency_window", 10)
	v.SetDefault("session.frame_skip", 1)
	v.SetDefault("session.points", 21)
	v.SetDefault("session.backpressure", "queue")
	v.SetDefault("session.refresh_confidence", true)
	v.SetDefault("session.async", true)

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.fps", 15)
	v.SetDefault("camera.idle_fps", 5)
	v.SetDefault("camera.idle_timeout", 2*time.Second)
	v.SetDefault("motion.threshold", 1.0)

	v.SetDefault("detector.backend", "mediapipe")
	v.SetDefault("detector.min_confidence", 0.5)
	v.SetDefault("detector.min_tracking_confidence", 0.5)

	v.SetDefault("classifier.backend", "tflite")
	v.SetDefault("classifier.model_path", "")
	v.SetDefault("classifier.labels_path", "")
	v.SetDefault("classifier.threads", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("store.path", filepath.Join(DataDir(), "signbridge.db"))

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "signbridge:transitions")
	v.SetDefault("redis.key_prefix", "signbridge:")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("tray.enabled", false)
}
