// Package auth maps sensor API keys to sensor identities. Every committed
// event carries the sensor that ingested it, so authentication is also
// attribution.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// sensorCtxKey is the Gin context key used to store the authenticated sensor ID.
const sensorCtxKey = "sensor_id"

// Local dev fallback credentials, used only when no keys are configured, so
// the service runs out-of-the-box.
const (
	DefaultSensorKey = "sensor-key-123"
	DefaultSensorID  = "sensor1"
)

// Keyring maps API keys to sensor IDs. In production this mapping would
// typically come from IAM/JWT/Secret Manager.
type Keyring map[string]string

// NewKeyring copies the configured key set; an empty set falls back to the
// dev credentials.
func NewKeyring(keys map[string]string) Keyring {
	if len(keys) == 0 {
		return Keyring{DefaultSensorKey: DefaultSensorID}
	}
	kr := make(Keyring, len(keys))
	for key, sensor := range keys {
		kr[key] = sensor
	}
	return kr
}

// Authenticate resolves an API key to its sensor ID. Every key is compared
// in constant time, and the scan never exits early, so response timing leaks
// nothing about configured key material.
func (k Keyring) Authenticate(apiKey string) (string, bool) {
	var (
		sensorID string
		found    bool
	)
	for key, sensor := range k {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			sensorID = sensor
			found = true
		}
	}
	return sensorID, found
}

// APIKeyMiddleware authenticates sensors and consoles via the X-API-Key
// header and stores the resolved sensor ID on the request context.
func APIKeyMiddleware(keys Keyring) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		sensorID, ok := keys.Authenticate(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(sensorCtxKey, sensorID)
		c.Next()
	}
}

// SensorID returns the authenticated sensor ID from the request context.
func SensorID(c *gin.Context) string {
	v, _ := c.Get(sensorCtxKey)
	s, _ := v.(string)
	return s
}
