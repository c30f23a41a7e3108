//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework AppKit
#import <CoreGraphics/CoreGraphics.h>
#import <AppKit/AppKit.h>
#include <string.h>

#define MAX_DISPLAYS 32

typedef struct {
    unsigned int id;
    int width;
    int height;
    double scale;
    int main;
    char name[256];
} displayInfo;

static void displayName(CGDirectDisplayID id, char *out, size_t size) {
    out[0] = 0;
    @autoreleasepool {
        for (NSScreen *screen in [NSScreen screens]) {
            NSNumber *num = screen.deviceDescription[@"NSScreenNumber"];
            if (num.unsignedIntValue != id) {
                continue;
            }
            if (@available(macOS 10.15, *)) {
                const char *name = screen.localizedName.UTF8String;
                if (name != NULL) {
                    strlcpy(out, name, size);
                }
            }
            return;
        }
    }
}

int listActiveDisplays(displayInfo *out) {
    CGDirectDisplayID ids[MAX_DISPLAYS];
    uint32_t count = 0;
    if (CGGetActiveDisplayList(MAX_DISPLAYS, ids, &count) != kCGErrorSuccess) {
        return -1;
    }

    CGDirectDisplayID mainID = CGMainDisplayID();
    for (uint32_t i = 0; i < count; i++) {
        displayInfo *d = &out[i];
        d->id = ids[i];
        d->main = ids[i] == mainID;
        d->scale = 1.0;

        CGDisplayModeRef mode = CGDisplayCopyDisplayMode(ids[i]);
        if (mode != NULL) {
            d->width = (int)CGDisplayModeGetWidth(mode);
            d->height = (int)CGDisplayModeGetHeight(mode);
            if (d->width > 0) {
                d->scale = (double)CGDisplayModeGetPixelWidth(mode) / d->width;
            }
            CGDisplayModeRelease(mode);
        } else {
            d->width = (int)CGDisplayPixelsWide(ids[i]);
            d->height = (int)CGDisplayPixelsHigh(ids[i]);
        }

        displayName(ids[i], d->name, sizeof(d->name));
    }
    return (int)count;
}
*/
import "C"

import (
	"errors"
	"fmt"

	"github.com/petems/capture-inventory/internal/device"
)

// maxDisplays matches MAX_DISPLAYS above
const maxDisplays = 32

func listDisplays() ([]device.Device, error) {
	var infos [maxDisplays]C.displayInfo
	n := int(C.listActiveDisplays(&infos[0]))
	if n < 0 {
		return nil, errors.New("CGGetActiveDisplayList failed")
	}

	displays := make([]device.Device, 0, n)
	for _, info := range infos[:n] {
		id := uint32(info.id)
		name := C.GoString(&info.name[0])
		if name == "" {
			name = fmt.Sprintf("Display %d", id)
		}
		displays = append(displays, device.Device{
			ID:      fmt.Sprintf("%d", id),
			Name:    name,
			Kind:    device.Display,
			Default: info.main != 0,
			Width:   int(info.width),
			Height:  int(info.height),
			Scale:   float64(info.scale),
		})
	}
	return displays, nil
}
