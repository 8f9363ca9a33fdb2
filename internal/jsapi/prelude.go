package jsapi

// preludeJS installs the hidden __jsb object every native operation goes
// through. It owns the cell table: GC things handed to Go are stored under
// numeric ids and addressed by descriptors.
//
// Descriptors: "u" undefined, "n" null, "b:0"/"b:1" boolean, "i:<n>" int32,
// "d:<n>" double, "s:<id>" string, "y:<id>" symbol, "o:<id>" object,
// "c:<id>" compiled script, "r:<text>" raw text. A leading "x" marks a
// thrown value; "t<msg>" asks the trampoline to throw a fresh Error.
//
// The placeholder %d receives the id base of the context.
const preludeJS = `(function (base, host) {
	'use strict';
	var cells = new Map();
	var ids = new Map();
	var next = base;
	var nativeEval = eval;
	var scopedEval = Function('__jsb_scope', '__jsb_src', 'return eval(__jsb_src);');
	var lineRe = /(?:<anonymous>|<input>|<eval>):(\d+)/;

	function born(v) {
		next++;
		cells.set(next, v);
		return next;
	}

	function intern(v) {
		var id = ids.get(v);
		if (id === undefined) {
			id = born(v);
			ids.set(v, id);
		}
		return id;
	}

	function cell(id) {
		if (!cells.has(id)) throw new ReferenceError('stale GC thing #' + id);
		return cells.get(id);
	}

	function enc(v) {
		switch (typeof v) {
		case 'undefined':
			return 'u';
		case 'boolean':
			return v ? 'b:1' : 'b:0';
		case 'number':
			if ((v | 0) === v && (v !== 0 || 1 / v > 0)) return 'i:' + v;
			return Object.is(v, -0) ? 'd:-0' : 'd:' + String(v);
		case 'bigint':
			return 'd:' + String(Number(v));
		case 'string':
			return 's:' + born(v);
		case 'symbol':
			return 'y:' + intern(v);
		default:
			if (v === null) return 'n';
			return 'o:' + intern(v);
		}
	}

	// Script numbers carry no int32/double distinction, so a double with an
	// integral value written by the host is remembered per property and
	// handed back as a double while the property still holds it.
	var doubles = new WeakMap();

	function integral(v) {
		return typeof v === 'number' && (v | 0) === v && (v !== 0 || 1 / v > 0);
	}

	function remember(o, k, d, v) {
		var slots = doubles.get(o);
		if (d.charAt(0) === 'd' && integral(v)) {
			if (!slots) {
				slots = new Map();
				doubles.set(o, slots);
			}
			slots.set(String(k), v);
		} else if (slots) {
			slots.delete(String(k));
		}
	}

	function recall(o, k) {
		var v = o[k], slots = doubles.get(o);
		if (slots !== undefined && integral(v) && slots.get(String(k)) === v) return 'd:' + String(v);
		return enc(v);
	}

	function encList(list) {
		var out = [];
		for (var i = 0; i < list.length; i++) out.push(enc(list[i]));
		return out.join(',');
	}

	function dec(d) {
		var p = d.substring(2);
		switch (d.charAt(0)) {
		case 'u': return undefined;
		case 'n': return null;
		case 'b': return p === '1';
		case 'i': return Number(p) | 0;
		case 'd': return Number(p);
		case 's':
		case 'y':
		case 'o':
		case 'c':
			return cell(Number(p));
		}
		throw new TypeError('bad descriptor ' + d);
	}

	function decList(s) {
		if (s === '') return [];
		var parts = s.split(','), out = [];
		for (var i = 0; i < parts.length; i++) out.push(dec(parts[i]));
		return out;
	}

	function guard(f) {
		return function () {
			try {
				return f.apply(null, arguments);
			} catch (e) {
				return 'x' + enc(e);
			}
		};
	}

	// Top-level var names are defined on the scope so their assignments
	// resolve to it; function declarations are copied over before the
	// first statement runs.
	function run(scope, src, vars, funcs) {
		if (scope == null || scope === globalThis) return nativeEval(src);
		for (var i = 0; i < vars.length; i++) {
			if (!(vars[i] in scope)) scope[vars[i]] = undefined;
		}
		var pre = '';
		for (i = 0; i < funcs.length; i++) {
			pre += 'void (__jsb_scope[' + JSON.stringify(funcs[i]) + '] = ' + funcs[i] + ');';
		}
		return scopedEval(scope, 'with (__jsb_scope) {' + pre + src + '\n}');
	}

	function own(o, k, v) {
		Object.defineProperty(o, k, { value: v, writable: true, configurable: true });
	}

	// Errors raised by the evaluated source itself carry an engine
	// placeholder file name; give them the caller's filename and line.
	function locate(e, filename, line) {
		if (!(e instanceof Error)) return;
		try {
			var fn = e.fileName, ln = e.lineNumber;
			if (typeof fn === 'string' && fn !== '' && fn.charAt(0) !== '<') return;
			own(e, 'fileName', filename);
			if (typeof fn === 'string' && typeof ln === 'number') {
				own(e, 'lineNumber', line + ln - 1);
				return;
			}
			var m = typeof e.stack === 'string' ? lineRe.exec(e.stack) : null;
			own(e, 'lineNumber', m ? line + Number(m[1]) - 1 : line);
		} catch (ignored) {}
	}

	function evaluate(scope, src, filename, line, vars, funcs) {
		try {
			return run(scope, src, vars, funcs);
		} catch (e) {
			locate(e, filename, line);
			throw e;
		}
	}

	function native(fnID, name, nargs) {
		var f = function () {
			var r = host(fnID, enc(this), encList(arguments));
			switch (r.charAt(0)) {
			case 'x':
				throw dec(r.substring(1));
			case 't':
				throw new Error(r.length > 1 ? r.substring(1) :
					'native function ' + name + ' failed without an exception');
			}
			return dec(r);
		};
		Object.defineProperty(f, 'name', { value: name });
		Object.defineProperty(f, 'length', { value: nargs });
		return f;
	}

	var api = {
		free: function (list) {
			for (var i = 0; i < list.length; i++) {
				var v = cells.get(list[i]);
				cells.delete(list[i]);
				if (v !== null && (typeof v === 'object' || typeof v === 'function' || typeof v === 'symbol') &&
					ids.get(v) === list[i]) {
					ids.delete(v);
				}
			}
			return cells.size;
		},
		fault: guard(function (msg) { return enc(new Error(msg)); }),
		global: guard(function () { return enc(globalThis); }),
		evaluate: guard(function (scope, src, filename, line, vars, funcs) {
			return enc(evaluate(dec(scope), src, filename, line, vars, funcs));
		}),
		compile: guard(function (src, filename, line, vars, funcs) {
			try {
				Function(src);
			} catch (e) {
				locate(e, filename, line);
				throw e;
			}
			return 'c:' + born({ src: src, filename: filename, line: line, vars: vars, funcs: funcs });
		}),
		execute: guard(function (scope, script) {
			var s = dec(script);
			return enc(evaluate(dec(scope), s.src, s.filename, s.line, s.vars, s.funcs));
		}),
		get: guard(function (o, name) { return recall(dec(o), name); }),
		set: guard(function (o, name, v) {
			var target = dec(o), x = dec(v);
			target[name] = x;
			remember(target, name, v, x);
			return 'u';
		}),
		has: guard(function (o, name) { return (name in dec(o)) ? 'b:1' : 'b:0'; }),
		del: guard(function (o, name) { return (delete dec(o)[name]) ? 'b:1' : 'b:0'; }),
		proto: guard(function (o) { return enc(Object.getPrototypeOf(dec(o))); }),
		newObject: guard(function () { return enc({}); }),
		newArray: guard(function (n) { return enc(new Array(n)); }),
		arrayFrom: guard(function (list) {
			var a = decList(list), parts = list === '' ? [] : list.split(',');
			for (var i = 0; i < a.length; i++) remember(a, i, parts[i], a[i]);
			return enc(a);
		}),
		isArray: guard(function (o) { return Array.isArray(dec(o)) ? 'b:1' : 'b:0'; }),
		length: guard(function (o) { return enc(dec(o).length >>> 0); }),
		setLength: guard(function (o, n) { dec(o).length = n; return 'u'; }),
		getElement: guard(function (o, i) { return recall(dec(o), i); }),
		setElement: guard(function (o, i, v) {
			var target = dec(o), x = dec(v);
			target[i] = x;
			remember(target, i, v, x);
			return 'u';
		}),
		newString: guard(function (s) { return enc(s); }),
		chars: guard(function (s) { return 'r:' + String(dec(s)); }),
		toString: guard(function (v) { return enc(String(dec(v))); }),
		typeOf: guard(function (v) {
			var x = dec(v);
			return 'r:' + (x === null ? 'null' : typeof x);
		}),
		report: guard(function (v) {
			var x = dec(v), info = { message: '', fileName: '', lineNumber: 0 };
			try {
				info.message = String(x);
				if (x !== null && typeof x === 'object') {
					if (typeof x.fileName === 'string') info.fileName = x.fileName;
					if (typeof x.lineNumber === 'number') info.lineNumber = x.lineNumber;
				}
			} catch (ignored) {}
			return 'r:' + JSON.stringify(info);
		}),
		call: guard(function (thisv, fn, list) {
			return enc(Function.prototype.apply.call(dec(fn), dec(thisv), decList(list)));
		}),
		construct: guard(function (ctor, list) { return enc(Reflect.construct(dec(ctor), decList(list))); }),
		newError: guard(function (list) { return enc(Reflect.construct(Error, decList(list))); }),
		define: guard(function (o, name, fnID, nargs, attrs) {
			var f = native(fnID, name, nargs);
			Object.defineProperty(dec(o), name, {
				value: f,
				enumerable: (attrs & 1) !== 0,
				writable: (attrs & 2) === 0,
				configurable: (attrs & 4) === 0
			});
			return enc(f);
		})
	};

	Object.defineProperty(globalThis, '__jsb', { value: Object.freeze(api) });
})(%d, globalThis.__jsb_call);
delete globalThis.__jsb_call;
`
