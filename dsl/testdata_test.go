package dsl

// surveyProgram exercises every declaration and statement form.
const surveyProgram = `
Import sys;
Import math;

Action lift(h) {
	takeOff();
	flyToHeight(h);
}

Action report(tag) {
	sys.print(tag, sys.vehicle());
}

Agent drone { lift, report; }

Behavior patrol(laps) {
	init { n = 0; }
	goal { $ n >= laps }
	routine {
		n = n + 1;
		report("lap");
	}
}

Task survey({drone[s~e]}, height) {
	init {
		put 0 to #visits#;
		done = 0;
	}
	goal {
		get v from #visits#;
		$ v >= e - s and done == 1
	}
	routine {
		each drone[s~e] {
			lift(height);
			patrol(2);
		}
		order drone[s~e] {
			report("ordered");
		}
		get v from #visits#;
		put v + e - s to #visits#;
		if (v > 100) {
			return v;
		} else if (math.abs(-v) == 0) {
			done = 1;
		} else {
			done = 1;
		}
	}
}

Main {
	Agent drone 3;
	survey({drone[0~3]}, 5);
}
`
