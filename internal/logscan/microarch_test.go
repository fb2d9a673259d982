package logscan

import "testing"

func TestCPUMicroarch(t *testing.T) {
	tests := []struct {
		name   string
		log    string
		want   string
		wantOK bool
	}{
		{
			name: "skylake worker",
			log: "processor\t: 0\n" +
				"vendor_id\t: GenuineIntel\n" +
				"cpu family\t: 6\n" +
				"model\t\t: 85\n" +
				"model name\t: Intel(R) Xeon(R) Platinum 8171M\n",
			want:   "skylake",
			wantOK: true,
		},
		{
			name: "haswell worker",
			log: "cpu family\t: 6\n" +
				"model\t\t: 63\n",
			want:   "haswell",
			wantOK: true,
		},
		{
			name: "model name line does not stand in for the model line",
			log: "cpu family\t: 6\n" +
				"model name\t: Intel(R) Xeon(R) CPU E5-2673 v4\n" +
				"model\t\t: 79\n",
			want:   "broadwell",
			wantOK: true,
		},
		{
			name: "unknown pair yields no value",
			log: "cpu family\t: 6\n" +
				"model\t\t: 142\n",
			wantOK: false,
		},
		{
			name: "first family and model pair decides",
			log: "cpu family\t: 6\n" +
				"model\t\t: 142\n" +
				"cpu family\t: 6\n" +
				"model\t\t: 85\n",
			wantOK: false,
		},
		{
			name:   "log without cpuinfo",
			log:    "compiling stage0 artifacts\n",
			wantOK: false,
		},
		{
			name:   "family without model",
			log:    "cpu family\t: 6\n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CPUMicroarch(tt.log)
			if ok != tt.wantOK {
				t.Fatalf("CPUMicroarch() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("CPUMicroarch() = %q, want %q", got, tt.want)
			}
		})
	}
}
