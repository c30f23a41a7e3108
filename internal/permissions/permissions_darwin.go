//go:build darwin

package permissions

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AVFoundation -framework CoreGraphics
#import <AVFoundation/AVFoundation.h>
#import <CoreGraphics/CoreGraphics.h>

static AVMediaType mediaType(int video) {
    return video ? AVMediaTypeVideo : AVMediaTypeAudio;
}

int checkCapturePermission(int video) {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:mediaType(video)];
    return (int)status;
}

void requestCapturePermission(int video) {
    [AVCaptureDevice requestAccessForMediaType:mediaType(video) completionHandler:^(BOOL granted) {}];
}

int checkScreenPermission() {
    return CGPreflightScreenCaptureAccess() ? 1 : 0;
}

void requestScreenPermission() {
    CGRequestScreenCaptureAccess();
}
*/
import "C"

import (
	"sync/atomic"

	"github.com/petems/capture-inventory/internal/device"
)

// Screen recording has no "not determined" state, so a refusal after our
// own request is reported as Denied.
var screenRequested atomic.Bool

func mediaFlag(kind device.Kind) C.int {
	if kind == device.Video {
		return 1
	}
	return 0
}

// Check returns the current capture permission status for the device kind
func Check(kind device.Kind) Status {
	if kind == device.Display {
		return screenStatus(C.checkScreenPermission() == 1, screenRequested.Load())
	}
	return Status(C.checkCapturePermission(mediaFlag(kind)))
}

// Request triggers the system permission dialog. The answer arrives
// asynchronously; callers see it on a later Check.
func Request(kind device.Kind) {
	if kind == device.Display {
		screenRequested.Store(true)
		C.requestScreenPermission()
		return
	}
	C.requestCapturePermission(mediaFlag(kind))
}

// Supported reports whether device enumeration is available on this platform
func Supported() bool {
	return true
}
