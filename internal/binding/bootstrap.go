package binding

// bootstrapJS is a function expression called once with the install token.
// It captures the host functions and the builtins it depends on, removes
// the host functions from globalThis, and defines a frozen, non-configurable
// globalThis.__wk whose every entry point demands the token. The worker table,
// timer callbacks and shared list proxies live only in this closure, so a
// script can reach its own binding and nothing else.
const bootstrapJS = `
(function(token) {
	var hostSend = globalThis.__wk_host_send;
	var hostCallback = globalThis.__wk_host_callback;
	var hostError = globalThis.__wk_host_error;
	var hostShared = globalThis.__wk_host_shared;
	var hostTimer = globalThis.__wk_host_timer;
	var hostClearTimer = globalThis.__wk_host_clear_timer;
	var hostLog = globalThis.__wk_host_log;
	var hostTake = globalThis.__wk_host_take;
	var makeConsole = globalThis.__wk_console_factory;
	delete globalThis.__wk_host_send;
	delete globalThis.__wk_host_callback;
	delete globalThis.__wk_host_error;
	delete globalThis.__wk_host_shared;
	delete globalThis.__wk_host_timer;
	delete globalThis.__wk_host_clear_timer;
	delete globalThis.__wk_host_log;
	delete globalThis.__wk_host_take;
	delete globalThis.__wk_console_factory;

	var defineProperty = Object.defineProperty;
	var getPrototypeOf = Object.getPrototypeOf;
	var objectKeys = Object.keys;
	var freeze = Object.freeze;
	var isArray = Array.isArray;
	var jsonParse = JSON.parse;
	var jsonStringify = JSON.stringify;
	var reflectApply = Reflect.apply;
	var NativePromise = Promise;
	var ObjectProto = Object.prototype;

	function put(o, k, v) {
		defineProperty(o, k, { value: v, enumerable: true, writable: true, configurable: true });
	}
	function contains(list, v) {
		for (var i = 0; i < list.length; i++) if (list[i] === v) return true;
		return false;
	}
	function check(t) {
		if (t !== token) throw new TypeError('worker bindings are not accessible');
	}

	var listIds = new WeakMap();
	function listID(l) {
		var id = listIds.get(l);
		if (id === undefined) throw new TypeError('not a SharedList');
		return id;
	}
	function SharedList() {
		throw new TypeError('SharedList cannot be constructed by scripts');
	}
	function sharedCall(l, op, args) {
		return decode(hostShared(listID(l), op, encode(args)));
	}
	defineProperty(SharedList.prototype, 'count', {
		get: function() { return sharedCall(this, 'count', []); }
	});
	SharedList.prototype.get = function(i) { return sharedCall(this, 'get', [i]); };
	SharedList.prototype.set = function(i, v) { sharedCall(this, 'set', [i, v]); };
	SharedList.prototype.append = function(v) { sharedCall(this, 'append', [v]); };
	SharedList.prototype.insert = function(i, v) { sharedCall(this, 'insert', [i, v]); };
	SharedList.prototype.remove = function(i, n) {
		sharedCall(this, 'remove', [i, n === undefined ? 1 : n]);
	};
	SharedList.prototype.clear = function() { sharedCall(this, 'clear', []); };
	SharedList.prototype.sync = function() {};
	freeze(SharedList.prototype);

	var lists = Object.create(null);
	function sharedList(id) {
		var l = lists[id];
		if (!l) {
			l = Object.create(SharedList.prototype);
			listIds.set(l, id);
			lists[id] = l;
		}
		return l;
	}

	// maxWireNodes bounds the expansion of values that share substructure.
	var maxWireNodes = 1 << 20;
	var wireNodes = 0;

	function toWire(v, seen) {
		if (v === null || v === undefined || ++wireNodes > maxWireNodes) return null;
		switch (typeof v) {
		case 'boolean':
		case 'string':
			return v;
		case 'number':
			if (v !== v) return { $: 'num', v: 'NaN' };
			if (v === Infinity) return { $: 'num', v: 'Infinity' };
			if (v === -Infinity) return { $: 'num', v: '-Infinity' };
			if (v === 0 && 1 / v < 0) return { $: 'num', v: '-0' };
			return v;
		case 'object':
			break;
		default:
			return null;
		}
		if (listIds.has(v)) return { $: 'shared', id: listIds.get(v) };
		if (v instanceof Date) {
			var t = v.getTime();
			return t !== t ? null : { $: 'date', v: t };
		}
		if (v instanceof RegExp) return { $: 're', p: v.source, f: v.flags };
		if (contains(seen, v)) return null;
		var out;
		put(seen, seen.length, v);
		if (isArray(v)) {
			out = [];
			for (var i = 0; i < v.length; i++) put(out, i, toWire(v[i], seen));
		} else {
			var proto = getPrototypeOf(v);
			if (proto !== ObjectProto && proto !== null) {
				seen.length--;
				return null;
			}
			var pairs = [];
			var keys = objectKeys(v);
			for (var k = 0; k < keys.length; k++) put(pairs, k, [keys[k], toWire(v[keys[k]], seen)]);
			out = { $: 'map', v: pairs };
		}
		seen.length--;
		return out;
	}

	function fromWire(w) {
		if (w === null || typeof w !== 'object') return w;
		if (isArray(w)) {
			var arr = [];
			for (var i = 0; i < w.length; i++) put(arr, i, fromWire(w[i]));
			return arr;
		}
		switch (w.$) {
		case 'num':
			if (w.v === 'NaN') return NaN;
			if (w.v === 'Infinity') return Infinity;
			if (w.v === '-Infinity') return -Infinity;
			return -0;
		case 'date':
			return new Date(w.v);
		case 're':
			try { return new RegExp(w.p, w.f); } catch (e) { return null; }
		case 'map':
			var o = {};
			for (var j = 0; j < w.v.length; j++) put(o, w.v[j][0], fromWire(w.v[j][1]));
			return o;
		case 'shared':
			return sharedList(w.id);
		}
		return null;
	}

	function encode(v) {
		wireNodes = 0;
		return jsonStringify(toWire(v, []));
	}
	function decode(s) { return fromWire(jsonParse(s)); }

	function describe(e) {
		if (e && typeof e === 'object' && 'message' in e) {
			return (e.name ? e.name + ': ' : '') + e.message;
		}
		return String(e);
	}

	// promiseClass builds the Promise a worker sees. Rejections of promises
	// created through it are recorded in pending until something calls then
	// (catch and await both do); flush reports the rest.
	function promiseClass(pending) {
		var handled = new WeakSet();
		class WorkerPromise extends NativePromise {
			constructor(executor) {
				if (typeof executor !== 'function') throw new TypeError('Promise resolver is not a function');
				var self, settled = false, early = false, earlyReason;
				super(function(resolve, reject) {
					function res(v) {
						if (settled) return;
						settled = true;
						resolve(v);
					}
					function rej(reason) {
						if (settled) return;
						settled = true;
						if (self) put(pending, pending.length, { p: self, reason: reason });
						else { early = true; earlyReason = reason; }
						reject(reason);
					}
					try { executor(res, rej); } catch (e) { rej(e); }
				});
				self = this;
				if (early) put(pending, pending.length, { p: this, reason: earlyReason });
			}
			then(onFulfilled, onRejected) {
				handled.add(this);
				return super.then(onFulfilled, onRejected);
			}
			static [Symbol.hasInstance](v) {
				return v instanceof NativePromise;
			}
		}
		return { ctor: WorkerPromise, handled: handled };
	}

	function watch(id, r) {
		if (r && typeof r.then === 'function') {
			r.then(undefined, function(e) { hostError(id, describe(e)); });
		}
	}

	var timers = Object.create(null);
	var workers = Object.create(null);

	function create(id) {
		if (workers[id]) return;
		var state = { cb: undefined };
		var pending = [];
		var promises = promiseClass(pending);
		var b = {};
		defineProperty(b, 'onMessage', {
			get: function() { return state.cb; },
			set: function(fn) {
				state.cb = fn;
				hostCallback(id, typeof fn === 'function' ? 1 : 0);
			},
			enumerable: true
		});
		defineProperty(b, 'sendMessage', {
			value: function(v) { hostSend(id, encode(v)); },
			enumerable: true
		});
		function schedule(interval) {
			return function(fn, delay) {
				if (typeof fn !== 'function') throw new TypeError('timer callback must be a function');
				var args = [];
				for (var i = 2; i < arguments.length; i++) put(args, i - 2, arguments[i]);
				var tid = hostTimer(id, Math.max(0, Math.floor(Number(delay) || 0)), interval ? 1 : 0);
				timers[tid] = { fn: fn, args: args, self: b, interval: interval, owner: id };
				return tid;
			};
		}
		function clear(tid) {
			var entry = timers[tid];
			if (!entry || entry.owner !== id) return;
			delete timers[tid];
			hostClearTimer(id, Number(tid));
		}
		workers[id] = {
			binding: b,
			state: state,
			pending: pending,
			promises: promises,
			scope: [b, schedule(false), clear, schedule(true), clear, makeConsole(id, hostLog), promises.ctor]
		};
	}

	function flush() {
		var ids = objectKeys(workers);
		for (var n = 0; n < ids.length; n++) {
			var id = ids[n];
			var w = workers[id];
			var pending = w.pending;
			if (pending.length === 0) continue;
			var batch = [];
			for (var i = 0; i < pending.length; i++) put(batch, i, pending[i]);
			pending.length = 0;
			for (var j = 0; j < batch.length; j++) {
				if (!w.promises.handled.has(batch[j].p)) hostError(Number(id), describe(batch[j].reason));
			}
		}
	}

	var api = freeze({
		create: function(t, id) { check(t); create(id); },
		run: function(t, id, fn) {
			check(t);
			var w = workers[id];
			reflectApply(fn, w.binding, w.scope);
		},
		dispatch: function(t, id) {
			check(t);
			var payload = hostTake();
			var w = workers[id];
			if (!w || typeof w.state.cb !== 'function') return;
			watch(id, reflectApply(w.state.cb, w.binding, [decode(payload)]));
		},
		fire: function(t, tid) {
			check(t);
			var entry = timers[tid];
			if (!entry) return;
			if (!entry.interval) delete timers[tid];
			watch(entry.owner, reflectApply(entry.fn, entry.self, entry.args));
		},
		release: function(t, id, tids) {
			check(t);
			delete workers[id];
			for (var i = 0; i < tids.length; i++) delete timers[tids[i]];
		},
		flush: function(t) { check(t); flush(); },
		encode: function(t, v) { check(t); return encode(v); },
		decode: function(t) { check(t); return decode(hostTake()); }
	});
	defineProperty(globalThis, '__wk', { value: api, enumerable: false, writable: false, configurable: false });
})`

// scopePrologue opens the function scope a worker script is evaluated in;
// it is formatted with the install token and the worker id. The binding is both
// the receiver and the WorkerScript parameter, and the timer functions,
// console and Promise are bound to the worker so its timers die with it and
// its output and rejections are attributed to it.
const scopePrologue = `__wk.run(%q, %d, function(WorkerScript, setTimeout, clearTimeout, setInterval, clearInterval, console, Promise) {
`

// scopeEpilogue closes scopePrologue.
const scopeEpilogue = `
});`
