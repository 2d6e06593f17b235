// Command smoke runs an end-to-end pass against a live API: register a
// throwaway user, create a location and sensor, push a measurement with
// the device key and read it back.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("SENSORIUM_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	username := fmt.Sprintf("smoke-%d", rand.New(rand.NewSource(time.Now().UnixNano())).Int())
	password := "smoke-password"

	call := func(method, path, token, apiKey string, body, out any) {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				log.Fatalf("encode %s %s: %v", method, path, err)
			}
		}
		req, err := http.NewRequest(method, base+path, &buf)
		if err != nil {
			log.Fatalf("%s %s: %v", method, path, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if apiKey != "" {
			req.Header.Set("X-Api-Key", apiKey)
		}
		resp, err := client.Do(req)
		if err != nil {
			log.Fatalf("%s %s: %v", method, path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			log.Fatalf("%s %s: status %d", method, path, resp.StatusCode)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				log.Fatalf("decode %s %s: %v", method, path, err)
			}
		}
	}

	call(http.MethodPost, "/api/auth/register", "", "", map[string]string{
		"username": username,
		"password": password,
	}, nil)

	var login struct {
		Token string `json:"token"`
	}
	call(http.MethodPost, "/api/auth/login", "", "", map[string]string{
		"username": username,
		"password": password,
	}, &login)

	var loc struct {
		ID string `json:"id"`
	}
	call(http.MethodPost, "/api/locations", login.Token, "", map[string]string{
		"name": "smoke-location",
	}, &loc)

	var sensor struct {
		ID     string `json:"id"`
		APIKey string `json:"api_key"`
	}
	call(http.MethodPost, "/api/sensors", login.Token, "", map[string]string{
		"name":        "smoke-sensor",
		"type":        "temperature",
		"location_id": loc.ID,
	}, &sensor)

	value := 21.5
	call(http.MethodPost, "/api/measurements", "", sensor.APIKey, map[string]any{
		"value": value,
		"unit":  "C",
	}, nil)

	var measurements []struct {
		Value float64 `json:"value"`
	}
	call(http.MethodGet, "/api/sensors/"+sensor.ID+"/measurements", login.Token, "", nil, &measurements)
	if len(measurements) != 1 || measurements[0].Value != value {
		log.Fatalf("readback mismatch: %+v", measurements)
	}

	call(http.MethodPost, "/api/auth/logout", login.Token, "", nil, nil)

	fmt.Printf("✅ api smoke test passed: user=%s sensor=%s\n", username, sensor.ID)
}
