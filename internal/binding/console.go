package binding

// consoleJS defines the per-worker console factory. Output goes to the
// host log function tagged with the worker id; bootstrapJS captures the
// factory and removes it from globalThis.
const consoleJS = `
globalThis.__wk_console_factory = function(id, hostLog) {
	function format(arg) {
		if (typeof arg === 'string') return arg;
		if (arg instanceof Error) return (arg.name ? arg.name + ': ' : '') + arg.message;
		if (typeof arg === 'object' && arg !== null) {
			try { return JSON.stringify(arg); } catch (e) { return String(arg); }
		}
		return String(arg);
	}
	function join(args, from) {
		var start = from || 0, line = '';
		for (var i = start; i < args.length; i++) line += (i > start ? ' ' : '') + format(args[i]);
		return line;
	}
	function write(lvl, line) { hostLog(id, lvl, line); }

	function level(lvl) {
		return function() { write(lvl, join(arguments)); };
	}
	var con = {
		log: level('log'),
		info: level('info'),
		warn: level('warn'),
		error: level('error'),
		debug: level('debug')
	};

	var timers = {};
	var counters = {};
	con.time = function(label) {
		timers[label || 'default'] = Date.now();
	};
	con.timeEnd = function(label) {
		var l = label || 'default';
		var start = timers[l];
		if (start === undefined) { con.warn('Timer "' + l + '" does not exist'); return; }
		delete timers[l];
		con.log(l + ': ' + (Date.now() - start) + 'ms');
	};
	con.count = function(label) {
		var l = label || 'default';
		counters[l] = (counters[l] || 0) + 1;
		con.log(l + ': ' + counters[l]);
	};
	con.countReset = function(label) {
		counters[label || 'default'] = 0;
	};
	con.assert = function(cond) {
		if (cond) return;
		var rest = join(arguments, 1);
		write('error', 'Assertion failed' + (arguments.length > 1 ? ': ' + rest : ''));
	};
	return con;
};
`
