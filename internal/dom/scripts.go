package dom

// Page scripts. Each is an immediately invoked function taking one JSON
// argument spliced in with fmt.Sprintf and returning a plain object.

// locateScript removes the previous tag for opts.token, then tags and
// describes the first enabled, laid-out element matched by opts.selectors.
const locateScript = `(function (opts) {
	var attr = opts.attr;
	var stale = document.querySelectorAll('[' + attr + '="' + opts.token + '"]');
	for (var i = 0; i < stale.length; i++) {
		stale[i].removeAttribute(attr);
	}
	function laidOut(el) {
		if (el.offsetParent !== null) return true;
		return !!(el.getClientRects && el.getClientRects().length > 0);
	}
	function usable(el) {
		if (!el || el.disabled) return false;
		if (el.getAttribute && el.getAttribute('aria-disabled') === 'true') return false;
		return laidOut(el);
	}
	for (var s = 0; s < opts.selectors.length; s++) {
		var list;
		try {
			list = document.querySelectorAll(opts.selectors[s]);
		} catch (e) {
			continue;
		}
		for (var j = 0; j < list.length; j++) {
			var el = list[j];
			if (opts.requireUsable && !usable(el)) continue;
			el.setAttribute(attr, opts.token);
			return {
				found: true,
				selector: '[' + attr + '="' + opts.token + '"]',
				tag: (el.tagName || '').toLowerCase(),
				strategy: opts.selectors[s]
			};
		}
	}
	if (opts.texts && opts.texts.length) {
		var candidates = document.querySelectorAll(opts.textScope);
		for (var k = 0; k < candidates.length; k++) {
			var text = (candidates[k].textContent || '').trim();
			for (var t = 0; t < opts.texts.length; t++) {
				if (text.indexOf(opts.texts[t]) !== -1) {
					candidates[k].setAttribute(attr, opts.token);
					return {
						found: true,
						selector: '[' + attr + '="' + opts.token + '"]',
						tag: (candidates[k].tagName || '').toLowerCase(),
						strategy: 'text:' + opts.texts[t]
					};
				}
			}
		}
	}
	return {found: false};
})(%s)`

// writeValueScript assigns through the prototype's value setter so a
// framework's instance-level value tracker sees the change.
const writeValueScript = `(function (opts) {
	var el = document.querySelector(opts.selector);
	if (!el) return {found: false};
	if (el.click) el.click();
	if (el.focus) el.focus();
	var own = Object.getOwnPropertyDescriptor(el, 'value');
	var ownSetter = own && own.set;
	var protoSetter = null;
	var proto = Object.getPrototypeOf(el);
	while (proto && !protoSetter) {
		var d = Object.getOwnPropertyDescriptor(proto, 'value');
		if (d && d.set) protoSetter = d.set;
		proto = Object.getPrototypeOf(proto);
	}
	if (protoSetter && protoSetter !== ownSetter) {
		protoSetter.call(el, opts.text);
	} else if (ownSetter) {
		ownSetter.call(el, opts.text);
	} else {
		el.value = opts.text;
	}
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return {found: true};
})(%s)`

const writeEditableScript = `(function (opts) {
	var el = document.querySelector(opts.selector);
	if (!el) return {found: false};
	if (el.click) el.click();
	if (el.focus) el.focus();
	el.textContent = opts.text;
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return {found: true};
})(%s)`

const readScript = `(function (opts) {
	var el = document.querySelector(opts.selector);
	if (!el) return {found: false, value: ''};
	var v = opts.editable ? el.textContent : el.value;
	return {found: true, value: v == null ? '' : String(v)};
})(%s)`

// nudgeScript re-fires the input event without touching the value.
const nudgeScript = `(function (opts) {
	var el = document.querySelector(opts.selector);
	if (!el) return {found: false};
	el.dispatchEvent(new Event('input', {bubbles: true}));
	return {found: true};
})(%s)`

// buttonStateScript reports whether the send control can be pressed.
const buttonStateScript = `(function (opts) {
	var el = document.querySelector(opts.selector);
	if (!el) return {found: false, enabled: false};
	var disabled = !!el.disabled || (el.getAttribute && el.getAttribute('aria-disabled') === 'true');
	var laidOut = el.offsetParent !== null || !!(el.getClientRects && el.getClientRects().length > 0);
	return {found: true, enabled: !disabled && laidOut};
})(%s)`

const pressButtonScript = `(function (opts) {
	var el = document.querySelector(opts.selector);
	if (!el) return {found: false};
	var init = {bubbles: true, cancelable: true, view: window};
	el.dispatchEvent(new MouseEvent('mousedown', init));
	el.dispatchEvent(new MouseEvent('mouseup', init));
	el.click();
	return {found: true};
})(%s)`

// keyScript sends keydown, keypress and keyup to the first target that
// exists, falling back to document.body.
const keyScript = `(function (opts) {
	var el = null;
	for (var i = 0; i < opts.targets.length && !el; i++) {
		try {
			el = document.querySelector(opts.targets[i]);
		} catch (e) {
			el = null;
		}
	}
	if (!el) el = document.body;
	if (!el) return {found: false};
	var init = {
		key: opts.key,
		code: opts.code,
		keyCode: opts.keyCode,
		which: opts.keyCode,
		bubbles: true,
		cancelable: true,
		composed: true
	};
	var types = ['keydown', 'keypress', 'keyup'];
	for (var t = 0; t < types.length; t++) {
		el.dispatchEvent(new KeyboardEvent(types[t], init));
	}
	return {found: true};
})(%s)`
