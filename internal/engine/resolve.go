package engine

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ResolutionStrategy is one attempt at applying an assignment to the live
// DOM. Strategies are tried in order until one reports success; a strategy
// that cannot find its target returns false without error.
type ResolutionStrategy interface {
	Name() string
	TryApply(page *rod.Page, a Assignment) (bool, error)
}

// Resolver applies ordered assignments through a strategy chain. Each
// assignment is attempted at most once per strategy; there is no retry loop
// that could double-toggle a discrete control.
type Resolver struct {
	AssignmentSettle time.Duration
	RevealSettle     time.Duration

	numeric  ResolutionStrategy
	discrete []ResolutionStrategy
}

// NewResolver builds the default strategy chain.
func NewResolver(assignmentSettle, revealSettle time.Duration) *Resolver {
	return &Resolver{
		AssignmentSettle: assignmentSettle,
		RevealSettle:     revealSettle,
		numeric:          &numericInputStrategy{},
		discrete: []ResolutionStrategy{
			&exactTextStrategy{},
			&scopedTextStrategy{},
			&broadScanStrategy{},
		},
	}
}

// Apply walks the assignments in caller-supplied order. Order is
// authoritative: later assignments may target fields revealed by earlier
// ones. Failures are logged and skipped, never returned; the caller verifies
// through the result capture.
func (r *Resolver) Apply(page *rod.Page, assignments []Assignment) {
	for _, a := range assignments {
		chain := r.chainFor(a)

		applied := false
		var appliedBy string
		for _, s := range chain {
			ok, err := s.TryApply(page, a)
			if err != nil {
				log.Printf("resolve %q: strategy %s failed: %v", a.Field, s.Name(), err)
				continue
			}
			if ok {
				applied = true
				appliedBy = s.Name()
				break
			}
		}

		if applied {
			log.Printf("resolve %q = %q via %s", a.Field, a.Value, appliedBy)
		} else {
			log.Printf("resolve %q = %q: no strategy matched, field left unchanged", a.Field, a.Value)
		}

		// Let the page re-render before the next assignment. A discrete
		// click may reveal conditional sub-fields, which takes longer.
		if applied && appliedBy != r.numeric.Name() {
			time.Sleep(r.RevealSettle)
		} else {
			time.Sleep(r.AssignmentSettle)
		}
	}
}

// chainFor orders strategies by value type. Numeric literals favor the input
// path, everything else favors option clicking. Classification only sets
// priority; both paths are always present in the chain.
func (r *Resolver) chainFor(a Assignment) []ResolutionStrategy {
	if _, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64); err == nil {
		return append([]ResolutionStrategy{r.numeric}, r.discrete...)
	}
	return append(append([]ResolutionStrategy{}, r.discrete...), r.numeric)
}

// isSelectedJS reports whether an option control already shows the site's
// active-selection style. Spliced into each strategy's function body and
// checked before every click so re-applying the same assignment never
// toggles a control off.
const isSelectedJS = `
	const isSelected = (el) => {
		if ((el.className || '').toString().includes('selected')) return true;
		const bg = getComputedStyle(el).backgroundColor;
		return bg === 'rgb(16, 139, 133)' || bg === 'rgb(0, 150, 136)';
	};`

const markAttr = "data-resolve-target"

// clickMarked finds the element a strategy marked, unmarks it, and clicks it
// through simulated pointer interaction.
func clickMarked(page *rod.Page, strategy string) (bool, error) {
	el, err := page.Element("[" + markAttr + "]")
	if err != nil {
		return false, err
	}
	if _, err := el.Eval(`() => this.removeAttribute('` + markAttr + `')`); err != nil {
		return false, err
	}
	if err := el.ScrollIntoView(); err != nil {
		log.Printf("resolve: scroll before click failed (%s): %v", strategy, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, err
	}
	return true, nil
}

// numericInputStrategy fills a numeric or text input whose label matches the
// field name. Linkage order: explicit label[for], then the input following a
// label-like text, then geometric proximity among currently empty inputs.
// An input already holding a different value belongs to another assignment
// and is never clobbered.
type numericInputStrategy struct{}

func (s *numericInputStrategy) Name() string { return "numeric-input" }

func (s *numericInputStrategy) TryApply(page *rod.Page, a Assignment) (bool, error) {
	res, err := page.Eval(numericInputJS, a.Field, a.Value)
	if err != nil {
		return false, err
	}
	return res.Value.Str() == "applied", nil
}

const numericInputJS = `
(field, value) => {
	const setNative = (input) => {
		const proto = input.tagName === 'TEXTAREA'
			? window.HTMLTextAreaElement.prototype
			: window.HTMLInputElement.prototype;
		const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
		setter.call(input, value);
		input.dispatchEvent(new Event('input', { bubbles: true }));
		input.dispatchEvent(new Event('change', { bubbles: true }));
	};

	const matchesField = (text) => {
		if (!text) return false;
		text = text.trim();
		return text === field || text.startsWith(field);
	};

	const fillable = (input) => {
		const cur = (input.value || '').trim();
		return cur === '' || cur === value;
	};

	const inputs = Array.from(document.querySelectorAll(
		'input[type="number"], input[type="text"], input:not([type]), textarea'))
		.filter((el) => {
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0;
		});
	if (inputs.length === 0) return 'none';

	// Explicit label linkage.
	for (const label of document.querySelectorAll('label[for]')) {
		if (!matchesField(label.textContent)) continue;
		const input = document.getElementById(label.getAttribute('for'));
		if (input && inputs.includes(input)) {
			if (!fillable(input)) return 'occupied';
			setNative(input);
			return 'applied';
		}
	}

	// Nearest input following a label-like text element.
	const labelLike = Array.from(document.querySelectorAll('label, div, span, p'))
		.filter((el) => el.children.length === 0 && matchesField(el.textContent));
	for (const label of labelLike) {
		let node = label;
		for (let depth = 0; node && depth < 4; depth++) {
			let sib = node.nextElementSibling;
			while (sib) {
				const input = sib.matches('input, textarea') ? sib : sib.querySelector('input, textarea');
				if (input && inputs.includes(input)) {
					if (!fillable(input)) return 'occupied';
					setNative(input);
					return 'applied';
				}
				sib = sib.nextElementSibling;
			}
			node = node.parentElement;
		}
	}

	// Geometric proximity: closest empty input to the label text, weighting
	// vertical alignment, within a bounded radius.
	if (labelLike.length > 0) {
		const lr = labelLike[0].getBoundingClientRect();
		let best = null, bestDist = Infinity;
		for (const input of inputs) {
			if ((input.value || '').trim() !== '') continue;
			const ir = input.getBoundingClientRect();
			const dx = Math.abs(ir.left - lr.left);
			const dy = Math.abs((ir.top + ir.height / 2) - (lr.top + lr.height / 2));
			const dist = dx + dy * 3;
			if (dist < bestDist) { bestDist = dist; best = input; }
		}
		if (best && bestDist < 600) {
			setNative(best);
			return 'applied';
		}
	}

	return 'none';
}`

// exactTextStrategy clicks the single visible control whose exact text
// equals the value. Ambiguity across fields is left for the scoped strategy.
type exactTextStrategy struct{}

func (s *exactTextStrategy) Name() string { return "exact-text" }

func (s *exactTextStrategy) TryApply(page *rod.Page, a Assignment) (bool, error) {
	res, err := page.Eval(exactTextJS, a.Value)
	if err != nil {
		return false, err
	}
	switch res.Value.Str() {
	case "satisfied":
		return true, nil
	case "marked":
		return clickMarked(page, s.Name())
	default:
		return false, nil
	}
}

const exactTextJS = `
(value) => {` + isSelectedJS + `
	const candidates = Array.from(document.querySelectorAll(
		'div[class*="calc_option"], button, label, li, span[role="button"], [role="radio"]'))
		.filter((el) => {
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0 && (el.textContent || '').trim() === value;
		});
	if (candidates.length === 0) return 'none';
	if (candidates.length > 1) return 'ambiguous';
	if (isSelected(candidates[0])) return 'satisfied';
	candidates[0].setAttribute('` + markAttr + `', '1');
	return 'marked';
}`

// scopedTextStrategy disambiguates duplicate option text by requiring the
// field name to appear in a bounded ancestor chain of the candidate.
type scopedTextStrategy struct{}

func (s *scopedTextStrategy) Name() string { return "ancestor-scoped" }

func (s *scopedTextStrategy) TryApply(page *rod.Page, a Assignment) (bool, error) {
	res, err := page.Eval(scopedTextJS, a.Field, a.Value)
	if err != nil {
		return false, err
	}
	switch res.Value.Str() {
	case "satisfied":
		return true, nil
	case "marked":
		return clickMarked(page, s.Name())
	default:
		return false, nil
	}
}

const scopedTextJS = `
(field, value) => {` + isSelectedJS + `
	const inFieldScope = (el) => {
		let node = el.parentElement;
		for (let depth = 0; node && depth < 5; depth++) {
			if (node === document.body) break;
			if ((node.textContent || '').includes(field)) return true;
			node = node.parentElement;
		}
		return false;
	};

	const candidates = Array.from(document.querySelectorAll(
		'div[class*="calc_option"], button, label, li, span[role="button"], [role="radio"]'))
		.filter((el) => {
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0 &&
				(el.textContent || '').trim() === value && inFieldScope(el);
		});
	if (candidates.length === 0) return 'none';
	if (isSelected(candidates[0])) return 'satisfied';
	candidates[0].setAttribute('` + markAttr + `', '1');
	return 'marked';
}`

// broadScanStrategy is the last resort for non-standard markup: any element
// containing the value text near an ancestor containing the field name,
// activated by direct event dispatch instead of pointer simulation.
type broadScanStrategy struct{}

func (s *broadScanStrategy) Name() string { return "broad-scan" }

func (s *broadScanStrategy) TryApply(page *rod.Page, a Assignment) (bool, error) {
	res, err := page.Eval(broadScanJS, a.Field, a.Value)
	if err != nil {
		return false, err
	}
	v := res.Value.Str()
	return v == "clicked" || v == "satisfied", nil
}

const broadScanJS = `
(field, value) => {` + isSelectedJS + `
	const inFieldScope = (el) => {
		let node = el.parentElement;
		for (let depth = 0; node && depth < 6; depth++) {
			if (node === document.body) break;
			if ((node.textContent || '').includes(field)) return true;
			node = node.parentElement;
		}
		return false;
	};

	const candidates = Array.from(document.querySelectorAll('*'))
		.filter((el) => {
			if (el === document.body || el === document.documentElement) return false;
			const text = (el.textContent || '').trim();
			if (text.length === 0 || text.length > 120 || !text.includes(value)) return false;
			if (el.children.length > 2) return false;
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0 && inFieldScope(el);
		});
	if (candidates.length === 0) return 'none';

	const target = candidates[0];
	if (isSelected(target)) return 'satisfied';
	target.dispatchEvent(new MouseEvent('mousedown', { bubbles: true }));
	target.dispatchEvent(new MouseEvent('mouseup', { bubbles: true }));
	target.click();
	return 'clicked';
}`
