package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	uploadsTotal       atomic.Int64
	uploadRowsOK       atomic.Int64
	uploadRowsRejected atomic.Int64
	listCalls          atomic.Int64
	editCalls          atomic.Int64
	integrityFailures  atomic.Int64
	auditDropped       atomic.Int64
)

func Init() {}

func ObserveUpload(processed, rejected int) {
	uploadsTotal.Add(1)
	uploadRowsOK.Add(int64(processed))
	uploadRowsRejected.Add(int64(rejected))
}

func ObserveList() {
	listCalls.Add(1)
}

func ObserveEdit() {
	editCalls.Add(1)
}

func ObserveIntegrityFailure() {
	integrityFailures.Add(1)
}

func ObserveAuditDropped() {
	auditDropped.Add(1)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP pamm_patient_uploads_total Number of batch uploads handled since start.\n")
	fmt.Fprintf(w, "# TYPE pamm_patient_uploads_total counter\n")
	fmt.Fprintf(w, "pamm_patient_uploads_total %d\n", uploadsTotal.Load())

	fmt.Fprintf(w, "# HELP pamm_patient_upload_rows_processed_total Number of uploaded rows persisted.\n")
	fmt.Fprintf(w, "# TYPE pamm_patient_upload_rows_processed_total counter\n")
	fmt.Fprintf(w, "pamm_patient_upload_rows_processed_total %d\n", uploadRowsOK.Load())

	fmt.Fprintf(w, "# HELP pamm_patient_upload_rows_rejected_total Number of uploaded rows rejected by validation or duplicate checks.\n")
	fmt.Fprintf(w, "# TYPE pamm_patient_upload_rows_rejected_total counter\n")
	fmt.Fprintf(w, "pamm_patient_upload_rows_rejected_total %d\n", uploadRowsRejected.Load())

	fmt.Fprintf(w, "# HELP pamm_patient_list_calls_total Number of decrypted list calls served.\n")
	fmt.Fprintf(w, "# TYPE pamm_patient_list_calls_total counter\n")
	fmt.Fprintf(w, "pamm_patient_list_calls_total %d\n", listCalls.Load())

	fmt.Fprintf(w, "# HELP pamm_patient_edit_calls_total Number of record edits applied.\n")
	fmt.Fprintf(w, "# TYPE pamm_patient_edit_calls_total counter\n")
	fmt.Fprintf(w, "pamm_patient_edit_calls_total %d\n", editCalls.Load())

	fmt.Fprintf(w, "# HELP pamm_crypto_integrity_failures_total Number of stored blobs that failed authentication on decrypt.\n")
	fmt.Fprintf(w, "# TYPE pamm_crypto_integrity_failures_total counter\n")
	fmt.Fprintf(w, "pamm_crypto_integrity_failures_total %d\n", integrityFailures.Load())

	fmt.Fprintf(w, "# HELP pamm_audit_entries_dropped_total Number of best-effort audit entries lost to store failures.\n")
	fmt.Fprintf(w, "# TYPE pamm_audit_entries_dropped_total counter\n")
	fmt.Fprintf(w, "pamm_audit_entries_dropped_total %d\n", auditDropped.Load())
}
