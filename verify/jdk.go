package verify

// jdkThrowables maps common JDK exception types to their superclass, so
// throws clauses can be compared without the JDK on the classpath.
var jdkThrowables = map[string]string{
	"java.lang.Throwable":                       "java.lang.Object",
	"java.lang.Exception":                       "java.lang.Throwable",
	"java.lang.Error":                           "java.lang.Throwable",
	"java.lang.RuntimeException":                "java.lang.Exception",
	"java.lang.ReflectiveOperationException":    "java.lang.Exception",
	"java.lang.ClassNotFoundException":          "java.lang.ReflectiveOperationException",
	"java.lang.InterruptedException":            "java.lang.Exception",
	"java.lang.CloneNotSupportedException":      "java.lang.Exception",
	"java.lang.IllegalArgumentException":        "java.lang.RuntimeException",
	"java.lang.IllegalStateException":           "java.lang.RuntimeException",
	"java.lang.NullPointerException":            "java.lang.RuntimeException",
	"java.lang.UnsupportedOperationException":   "java.lang.RuntimeException",
	"java.lang.IndexOutOfBoundsException":       "java.lang.RuntimeException",
	"java.lang.ClassCastException":              "java.lang.RuntimeException",
	"java.lang.ArithmeticException":             "java.lang.RuntimeException",
	"java.lang.NumberFormatException":           "java.lang.IllegalArgumentException",
	"java.lang.AssertionError":                  "java.lang.Error",
	"java.io.IOException":                       "java.lang.Exception",
	"java.io.FileNotFoundException":             "java.io.IOException",
	"java.io.EOFException":                      "java.io.IOException",
	"java.io.UncheckedIOException":              "java.lang.RuntimeException",
	"java.util.NoSuchElementException":          "java.lang.RuntimeException",
	"java.util.ConcurrentModificationException": "java.lang.RuntimeException",
	"java.util.concurrent.ExecutionException":   "java.lang.Exception",
	"java.util.concurrent.TimeoutException":     "java.lang.Exception",
}
