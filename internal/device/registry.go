package device

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"

	"github.com/beeper/cfu-relay/internal/util"
)

// Map codes -> devices, management
//

var (
	codeToDevice     map[string]*Device
	codeToDeviceLock sync.Mutex
)

func init() {
	codeToDevice = make(map[string]*Device, 0)
}

func GetDevice(code string) (*Device, bool) {
	codeToDeviceLock.Lock()
	defer codeToDeviceLock.Unlock()
	d, exists := codeToDevice[code]
	return d, exists
}

// Devices returns the registered codes, sorted.
func Devices() []string {
	codeToDeviceLock.Lock()
	codes := make([]string, 0, len(codeToDevice))
	for code := range codeToDevice {
		codes = append(codes, code)
	}
	codeToDeviceLock.Unlock()
	sort.Strings(codes)
	return codes
}

func calculateSecret(globalSecret []byte, code string) []byte {
	h := hmac.New(sha256.New, globalSecret)
	h.Write([]byte(code))
	return h.Sum(nil)
}

// RegisterDevice registers d under the requested code, or under a fresh
// code with its derived secret when none is given. A device already
// registered under the code has its websocket closed.
func RegisterDevice(data RegisterCommandData, d *Device) (*RegisterCommandData, error) {
	codeToDeviceLock.Lock()
	defer codeToDeviceLock.Unlock()

	if data.Code == "" {
		var err error
		data.Code, err = util.GenerateDeviceCode()
		if err != nil {
			return nil, err
		}
		data.Secret = base64.RawStdEncoding.EncodeToString(calculateSecret(d.globalSecret, data.Code))
	} else {
		if !util.ValidDeviceCode(data.Code) || len(data.Secret) > 64 {
			return nil, fmt.Errorf("invalid secret")
		}
		decodedSecret, err := base64.RawStdEncoding.DecodeString(data.Secret)
		if err != nil || !hmac.Equal(calculateSecret(d.globalSecret, data.Code), decodedSecret) {
			return nil, fmt.Errorf("invalid secret")
		}
		if existing, exists := codeToDevice[data.Code]; exists && existing != d {
			d.log.Warn().
				Str("code", data.Code).
				Msg("New device with same code registering, exiting websocket")
			existing.ws.Close()
		}
	}

	codeToDevice[data.Code] = d
	return &data, nil
}

// UnregisterDevice removes d from code, unless another device has taken
// the code over since.
func UnregisterDevice(code string, d *Device) {
	codeToDeviceLock.Lock()
	defer codeToDeviceLock.Unlock()
	if codeToDevice[code] == d {
		delete(codeToDevice, code)
	}
}
