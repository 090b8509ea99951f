package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-rod/rod"
)

// discoverFieldsJS performs best-effort structural field discovery. Option
// groups are sibling controls sharing a container (two or more make a
// field), with the nearest preceding text-only element as the label. Text
// and number inputs are paired with their label separately. Zero fields is
// an expected outcome for heavily dynamic pages.
const discoverFieldsJS = `
() => {
	const fields = [];
	const seen = new Set();
	const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();

	const labelBefore = (container, firstOption) => {
		let sib = firstOption.parentElement ? firstOption.parentElement.previousElementSibling : null;
		while (sib) {
			if (sib.children.length === 0) {
				const t = clean(sib.textContent);
				if (t && t.length < 100) return t;
			}
			sib = sib.previousElementSibling;
		}
		for (const child of container.children) {
			if (child.children.length === 0 &&
			    !(child.className || '').toString().includes('calc_option')) {
				const t = clean(child.textContent);
				if (t && t.length < 100) return t;
			}
		}
		return null;
	};

	document.querySelectorAll('div').forEach((container) => {
		const options = container.querySelectorAll('div[class*="calc_option"]');
		if (options.length < 2) return;

		const label = labelBefore(container, options[0]);
		if (!label || seen.has(label)) return;
		seen.add(label);

		fields.push({
			label: label,
			kind: 'discrete',
			options: Array.from(options).map((opt) => ({
				text: clean(opt.textContent),
				selected: (opt.className || '').toString().includes('selected')
			}))
		});
	});

	document.querySelectorAll(
		'input[type="number"], input[type="text"], input:not([type])').forEach((input) => {
		let label = null;
		if (input.id) {
			const el = document.querySelector('label[for="' + input.id + '"]');
			if (el) label = clean(el.textContent);
		}
		if (!label) {
			const parent = input.closest('div');
			if (parent) {
				const walker = document.createTreeWalker(parent, NodeFilter.SHOW_TEXT);
				let node;
				while ((node = walker.nextNode())) {
					const t = clean(node.textContent);
					if (t && t.length > 1 && t.length < 50) { label = t; break; }
				}
			}
		}
		if (!label || seen.has(label)) return;
		seen.add(label);
		fields.push({ label: label, kind: 'numeric', options: [] });
	});

	return fields;
}`

// navigate loads a calculator URL and waits for client-side rendering to
// settle. Rendering completion cannot be observed directly, so a bounded
// idle wait is followed by a fixed settle delay. A timeout here is fatal to
// the operation.
func (e *Engine) navigate(page *rod.Page, url string) error {
	timeout := e.cfg.Browser.NavigationTimeout()

	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", url, err)
	}
	if err := page.Timeout(5 * time.Second).WaitIdle(5 * time.Second); err != nil {
		log.Printf("idle wait elapsed for %s, continuing", url)
	}
	time.Sleep(e.cfg.Browser.Settle())

	e.sessions.SeedPageStorage(page, originOf(url))
	return nil
}

func (e *Engine) discoverFields(page *rod.Page) []FieldDescriptor {
	res, err := page.Eval(discoverFieldsJS)
	if err != nil {
		log.Printf("field discovery failed: %v", err)
		return nil
	}

	var fields []FieldDescriptor
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &fields); err != nil {
		log.Printf("field discovery decode failed: %v", err)
		return nil
	}
	return fields
}

func pageTitle(page *rod.Page) string {
	res, err := page.Eval(`() => {
		const h = document.querySelector('h1');
		return h ? h.textContent.trim() : document.title;
	}`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
