package engine

import (
	"fmt"
	"log"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const zoomMarginFactor = 0.90

// FitZoom computes the page zoom percentage that fits a region of
// targetHeight pixels into a viewport of viewportHeight pixels. When the
// region already fits, zoom is a no-op 100. Otherwise the ratio is scaled by
// a margin factor so the region does not touch the frame edge, and clamped
// so text stays legible.
func FitZoom(targetHeight, viewportHeight float64) int {
	if targetHeight <= 0 || viewportHeight <= 0 {
		return 100
	}
	if targetHeight <= viewportHeight {
		return 100
	}

	zoom := int(viewportHeight / targetHeight * zoomMarginFactor * 100)
	if zoom < 50 {
		zoom = 50
	}
	if zoom > 100 {
		zoom = 100
	}
	return zoom
}

// measureHeightJS returns the pixel height of the region a capture must
// cover: the calculator container's bottom edge, extended to the bottom of
// the last interactive control, and optionally to the result region.
const measureHeightJS = `
(includeResult) => {
	const bottomOf = (el) => {
		const r = el.getBoundingClientRect();
		return r.bottom + window.scrollY;
	};

	let bottom = 0;
	const container = document.querySelector(
		'div[class*="calc_container"], div[class*="calculator"], form, main');
	if (container) bottom = bottomOf(container);

	const controls = document.querySelectorAll(
		'input, select, textarea, button, div[class*="calc_option"]');
	controls.forEach((el) => {
		const r = el.getBoundingClientRect();
		if (r.width > 0 && r.height > 0) bottom = Math.max(bottom, bottomOf(el));
	});

	if (includeResult) {
		document.querySelectorAll(
			'[class*="result"], [class*="Result"], [id*="result"]').forEach((el) => {
			const r = el.getBoundingClientRect();
			if (r.width > 0 && r.height > 0) bottom = Math.max(bottom, bottomOf(el));
		});
	}

	return bottom;
}`

// hideStickyPanelsJS hides fixed or sticky elements whose text looks like a
// floating result panel. Such panels occlude lower form fields in zoomed
// captures. Returns the count hidden; the marker attribute lets the restore
// script find them again.
const hideStickyPanelsJS = `
() => {
	let hidden = 0;
	document.querySelectorAll('div, aside, section').forEach((el) => {
		const style = getComputedStyle(el);
		if (style.position !== 'fixed' && style.position !== 'sticky') return;
		const text = (el.textContent || '').toLowerCase();
		if (!/result|score|points|risk/.test(text)) return;
		if (el.getAttribute('data-capture-hidden')) return;
		el.setAttribute('data-capture-hidden', '1');
		el.style.visibility = 'hidden';
		hidden++;
	});
	return hidden;
}`

const restoreStickyPanelsJS = `
() => {
	document.querySelectorAll('[data-capture-hidden]').forEach((el) => {
		el.style.visibility = '';
		el.removeAttribute('data-capture-hidden');
	});
}`

// fitCapture measures the page, zooms it so the region of interest fits the
// viewport, hides floating result panels, captures the viewport, and
// restores zoom and panel visibility unconditionally. Measurement or zoom
// failures degrade to an unzoomed capture; only the screenshot itself can
// fail the call.
func fitCapture(page *rod.Page, includeResult bool, viewportHeight float64, quality int) ([]byte, int, error) {
	zoom := 100
	res, err := page.Eval(measureHeightJS, includeResult)
	if err != nil {
		log.Printf("capture: height measurement failed: %v", err)
	} else {
		zoom = FitZoom(res.Value.Num(), viewportHeight)
	}

	if zoom < 100 {
		if _, err := page.Eval(`(z) => { document.body.style.zoom = z + '%'; }`, zoom); err != nil {
			log.Printf("capture: zoom failed: %v", err)
			zoom = 100
		}
	}
	if _, err := page.Eval(hideStickyPanelsJS); err != nil {
		log.Printf("capture: overlay hiding failed: %v", err)
	}

	// Restore must run even when the screenshot fails.
	defer func() {
		if _, err := page.Eval(restoreStickyPanelsJS); err != nil {
			log.Printf("capture: overlay restore failed: %v", err)
		}
		if zoom < 100 {
			if _, err := page.Eval(`() => { document.body.style.zoom = ''; }`); err != nil {
				log.Printf("capture: zoom reset failed: %v", err)
			}
		}
	}()

	img, err := captureViewport(page, quality)
	if err != nil {
		return nil, zoom, err
	}
	return img, zoom, nil
}

// captureViewport takes a compressed viewport-only screenshot.
func captureViewport(page *rod.Page, quality int) ([]byte, error) {
	img, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("capture viewport: %w", err)
	}
	return img, nil
}
