package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

func emit(level, event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["level"] = level
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}

func Log(event string, kv map[string]any) {
	emit("info", event, kv)
}

func Warn(event string, kv map[string]any) {
	emit("warn", event, kv)
}

func Error(event string, kv map[string]any) {
	emit("error", event, kv)
}
